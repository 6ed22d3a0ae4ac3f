package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// ErrInsecureCallback is returned by Validate when the callback surface
// has no secret and allow_insecure is not set.
var ErrInsecureCallback = errors.New(
	"callback secret is empty; set callback.secret or gateway.allow_insecure for local development")

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Callback  CallbackConfig  `json:"callback"`
	Executor  ExecutorConfig  `json:"executor"`
	Store     StoreConfig     `json:"store"`
	Channels  ChannelsConfig  `json:"channels"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Logging   LoggingConfig   `json:"logging"`
}

type GatewayConfig struct {
	Host string `env:"RELAYCLAW_GATEWAY_HOST" json:"host"`
	Port int    `env:"RELAYCLAW_GATEWAY_PORT" json:"port"`
	// PublicURL is the externally reachable base URL of this gateway,
	// used to build the callback address handed to the executor.
	PublicURL     string `env:"RELAYCLAW_GATEWAY_PUBLIC_URL"      json:"public_url"`
	AckOnDispatch bool   `env:"RELAYCLAW_GATEWAY_ACK_ON_DISPATCH" json:"ack_on_dispatch"`
	AllowInsecure bool   `env:"RELAYCLAW_GATEWAY_ALLOW_INSECURE"  json:"allow_insecure"`
}

type CallbackConfig struct {
	Path   string `env:"RELAYCLAW_CALLBACK_PATH"   json:"path"`
	Secret string `env:"RELAYCLAW_CALLBACK_SECRET" json:"secret"`
	// HeaderPrimary and HeaderLegacy are scanned in order, then Field
	// (query parameter or body field). First non-empty candidate wins.
	HeaderPrimary string `env:"RELAYCLAW_CALLBACK_HEADER_PRIMARY" json:"header_primary"`
	HeaderLegacy  string `env:"RELAYCLAW_CALLBACK_HEADER_LEGACY"  json:"header_legacy"`
	Field         string `env:"RELAYCLAW_CALLBACK_FIELD"          json:"field"`
}

type ExecutorConfig struct {
	BaseURL        string      `env:"RELAYCLAW_EXECUTOR_BASE_URL"        json:"base_url"`
	APIKey         string      `env:"RELAYCLAW_EXECUTOR_API_KEY"         json:"api_key"`
	TimeoutSeconds int         `env:"RELAYCLAW_EXECUTOR_TIMEOUT_SECONDS" json:"timeout_seconds"`
	Retry          RetryConfig `json:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int     `env:"RELAYCLAW_EXECUTOR_RETRY_MAX_ATTEMPTS"     json:"max_attempts"`
	InitialDelayMS int     `env:"RELAYCLAW_EXECUTOR_RETRY_INITIAL_DELAY_MS" json:"initial_delay_ms"`
	MaxDelayMS     int     `env:"RELAYCLAW_EXECUTOR_RETRY_MAX_DELAY_MS"     json:"max_delay_ms"`
	Multiplier     float64 `env:"RELAYCLAW_EXECUTOR_RETRY_MULTIPLIER"       json:"multiplier"`
}

type StoreConfig struct {
	// Backend selects "redis" (shared, production) or "memory"
	// (single instance, tests).
	Backend    string      `env:"RELAYCLAW_STORE_BACKEND"     json:"backend"`
	TTLSeconds int         `env:"RELAYCLAW_STORE_TTL_SECONDS" json:"ttl_seconds"`
	Redis      RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr      string `env:"RELAYCLAW_STORE_REDIS_ADDR"       json:"addr"`
	Password  string `env:"RELAYCLAW_STORE_REDIS_PASSWORD"   json:"password"`
	DB        int    `env:"RELAYCLAW_STORE_REDIS_DB"         json:"db"`
	KeyPrefix string `env:"RELAYCLAW_STORE_REDIS_KEY_PREFIX" json:"key_prefix"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
	Discord  DiscordConfig  `json:"discord"`
	Lark     LarkConfig     `json:"lark"`
	Bridge   BridgeConfig   `json:"bridge"`
}

type TelegramConfig struct {
	Enabled   bool                `env:"RELAYCLAW_CHANNELS_TELEGRAM_ENABLED"    json:"enabled"`
	Token     string              `env:"RELAYCLAW_CHANNELS_TELEGRAM_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"RELAYCLAW_CHANNELS_TELEGRAM_ALLOW_FROM" json:"allow_from"`
}

type SlackConfig struct {
	Enabled   bool                `env:"RELAYCLAW_CHANNELS_SLACK_ENABLED"    json:"enabled"`
	BotToken  string              `env:"RELAYCLAW_CHANNELS_SLACK_BOT_TOKEN"  json:"bot_token"`
	AppToken  string              `env:"RELAYCLAW_CHANNELS_SLACK_APP_TOKEN"  json:"app_token"`
	AllowFrom FlexibleStringSlice `env:"RELAYCLAW_CHANNELS_SLACK_ALLOW_FROM" json:"allow_from"`
}

type DiscordConfig struct {
	Enabled   bool                `env:"RELAYCLAW_CHANNELS_DISCORD_ENABLED"    json:"enabled"`
	Token     string              `env:"RELAYCLAW_CHANNELS_DISCORD_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"RELAYCLAW_CHANNELS_DISCORD_ALLOW_FROM" json:"allow_from"`
}

type LarkConfig struct {
	Enabled   bool                `env:"RELAYCLAW_CHANNELS_LARK_ENABLED"    json:"enabled"`
	AppID     string              `env:"RELAYCLAW_CHANNELS_LARK_APP_ID"     json:"app_id"`
	AppSecret string              `env:"RELAYCLAW_CHANNELS_LARK_APP_SECRET" json:"app_secret"`
	AllowFrom FlexibleStringSlice `env:"RELAYCLAW_CHANNELS_LARK_ALLOW_FROM" json:"allow_from"`
}

type BridgeConfig struct {
	Enabled   bool                `env:"RELAYCLAW_CHANNELS_BRIDGE_ENABLED"    json:"enabled"`
	URL       string              `env:"RELAYCLAW_CHANNELS_BRIDGE_URL"        json:"url"`
	Token     string              `env:"RELAYCLAW_CHANNELS_BRIDGE_TOKEN"      json:"token"`
	AllowFrom FlexibleStringSlice `env:"RELAYCLAW_CHANNELS_BRIDGE_ALLOW_FROM" json:"allow_from"`
}

type HeartbeatConfig struct {
	Enabled  bool   `env:"RELAYCLAW_HEARTBEAT_ENABLED"  json:"enabled"`
	Schedule string `env:"RELAYCLAW_HEARTBEAT_SCHEDULE" json:"schedule"` // cron expression
	Channel  string `env:"RELAYCLAW_HEARTBEAT_CHANNEL"  json:"channel"`
	ChatID   string `env:"RELAYCLAW_HEARTBEAT_CHAT_ID"  json:"chat_id"`
}

type LoggingConfig struct {
	Level      string `env:"RELAYCLAW_LOGGING_LEVEL"        json:"level"`
	Format     string `env:"RELAYCLAW_LOGGING_FORMAT"       json:"format"`
	File       string `env:"RELAYCLAW_LOGGING_FILE"         json:"file,omitempty"`
	MaxSizeMB  int    `env:"RELAYCLAW_LOGGING_MAX_SIZE_MB"  json:"max_size_mb,omitempty"`
	MaxBackups int    `env:"RELAYCLAW_LOGGING_MAX_BACKUPS"  json:"max_backups,omitempty"`
	MaxAgeDays int    `env:"RELAYCLAW_LOGGING_MAX_AGE_DAYS" json:"max_age_days,omitempty"`
	Compress   bool   `env:"RELAYCLAW_LOGGING_COMPRESS"     json:"compress,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			AckOnDispatch: true,
		},
		Callback: CallbackConfig{
			Path:          "/v1/callback",
			HeaderPrimary: "X-Callback-Secret",
			HeaderLegacy:  "X-Webhook-Key",
			Field:         "secret",
		},
		Executor: ExecutorConfig{
			TimeoutSeconds: 120,
			Retry: RetryConfig{
				MaxAttempts:    3,
				InitialDelayMS: 1000,
				MaxDelayMS:     30000,
				Multiplier:     2,
			},
		},
		Store: StoreConfig{
			Backend:    "redis",
			TTLSeconds: 3600,
			Redis: RedisConfig{
				Addr:      "127.0.0.1:6379",
				KeyPrefix: "relayclaw:corr:",
			},
		},
		Heartbeat: HeartbeatConfig{
			Schedule: "0 * * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Env-only operation is fine; the file is optional.
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks the invariants a running gateway depends on. An empty
// callback secret is refused unless allow_insecure opts in explicitly;
// the secret package would otherwise bypass authentication for every
// inbound callback.
func (c *Config) Validate() error {
	if c.Executor.BaseURL == "" {
		return errors.New("executor.base_url is required")
	}
	if c.Callback.Secret == "" && !c.Gateway.AllowInsecure {
		return ErrInsecureCallback
	}
	switch c.Store.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("store.backend %q is not supported (redis|memory)", c.Store.Backend)
	}
	if c.Store.TTLSeconds <= 0 {
		return errors.New("store.ttl_seconds must be positive")
	}
	return nil
}
