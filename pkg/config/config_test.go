package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("gateway.port: got %d, want 8080", cfg.Gateway.Port)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("store.backend: got %q, want redis", cfg.Store.Backend)
	}
	if cfg.Callback.Path != "/v1/callback" {
		t.Errorf("callback.path: got %q, want /v1/callback", cfg.Callback.Path)
	}
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"gateway": {"host": "10.0.0.1", "port": 9999},
		"executor": {"base_url": "http://executor:9000"},
		"channels": {"telegram": {"enabled": true, "allow_from": ["123", 456]}}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.Host != "10.0.0.1" || cfg.Gateway.Port != 9999 {
		t.Errorf("gateway not loaded: %+v", cfg.Gateway)
	}
	if cfg.Executor.BaseURL != "http://executor:9000" {
		t.Errorf("executor.base_url: got %q", cfg.Executor.BaseURL)
	}
	// Untouched sections keep defaults.
	if cfg.Executor.Retry.MaxAttempts != 3 {
		t.Errorf("executor.retry.max_attempts: got %d, want 3", cfg.Executor.Retry.MaxAttempts)
	}
	// Mixed string/number allow_from entries.
	want := []string{"123", "456"}
	if len(cfg.Channels.Telegram.AllowFrom) != 2 {
		t.Fatalf("allow_from: got %v", cfg.Channels.Telegram.AllowFrom)
	}
	for i, w := range want {
		if cfg.Channels.Telegram.AllowFrom[i] != w {
			t.Errorf("allow_from[%d]: got %q, want %q", i, cfg.Channels.Telegram.AllowFrom[i], w)
		}
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"gateway": {"port": 9999}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAYCLAW_GATEWAY_PORT", "7777")
	t.Setenv("RELAYCLAW_CALLBACK_SECRET", "env-secret")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.Port != 7777 {
		t.Errorf("gateway.port: got %d, want 7777 (env overlay)", cfg.Gateway.Port)
	}
	if cfg.Callback.Secret != "env-secret" {
		t.Errorf("callback.secret: got %q", cfg.Callback.Secret)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.Gateway.Host = "10.0.0.1"
	cfg.Executor.BaseURL = "http://executor:9000"
	cfg.Callback.Secret = "s3cret"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if loaded.Gateway.Host != "10.0.0.1" {
		t.Errorf("gateway.host: got %s", loaded.Gateway.Host)
	}
	if loaded.Callback.Secret != "s3cret" {
		t.Errorf("callback.secret: got %s", loaded.Callback.Secret)
	}
}

func TestDefaultConfigMarshalsToValidJSON(t *testing.T) {
	data, err := json.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("marshaling default config: %v", err)
	}
	var roundtrip Config
	if err := json.Unmarshal(data, &roundtrip); err != nil {
		t.Fatalf("unmarshaling default config: %v", err)
	}
}

func TestValidateRefusesEmptyCallbackSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Executor.BaseURL = "http://executor:9000"

	err := cfg.Validate()
	if !errors.Is(err, ErrInsecureCallback) {
		t.Fatalf("expected ErrInsecureCallback, got %v", err)
	}

	cfg.Gateway.AllowInsecure = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("allow_insecure should permit empty secret, got %v", err)
	}

	cfg.Gateway.AllowInsecure = false
	cfg.Callback.Secret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("configured secret should validate, got %v", err)
	}
}

func TestValidateRequiresExecutorBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Callback.Secret = "s3cret"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing executor.base_url")
	}
}

func TestValidateRejectsUnknownStoreBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Executor.BaseURL = "http://executor:9000"
	cfg.Callback.Secret = "s3cret"
	cfg.Store.Backend = "dynamo"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown store backend")
	}
}
