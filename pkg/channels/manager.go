package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/config"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
)

// Manager owns the enabled channels: it constructs them from config,
// starts and stops them together, and routes outbound bus messages to
// the channel that owns them.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

func NewManager(cfg *config.Config, msgBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
	}

	if cfg.Channels.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Channels.Telegram, msgBus)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
		m.channels["telegram"] = ch
	}
	if cfg.Channels.Slack.Enabled {
		m.channels["slack"] = NewSlackChannel(cfg.Channels.Slack, msgBus)
	}
	if cfg.Channels.Discord.Enabled {
		ch, err := NewDiscordChannel(cfg.Channels.Discord, msgBus)
		if err != nil {
			return nil, fmt.Errorf("discord channel: %w", err)
		}
		m.channels["discord"] = ch
	}
	if cfg.Channels.Lark.Enabled {
		m.channels["lark"] = NewLarkChannel(cfg.Channels.Lark, msgBus)
	}
	if cfg.Channels.Bridge.Enabled {
		m.channels["bridge"] = NewBridgeChannel(cfg.Channels.Bridge, msgBus)
	}

	return m, nil
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *Manager) GetEnabledChannels() string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func (m *Manager) StartAll(ctx context.Context) error {
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Channel failed to start", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
			continue
		}
		logger.InfoCF("channels", "Channel started", map[string]any{"channel": name})
	}
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Channel stop error", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// RouteOutbound consumes outbound bus messages until ctx is done,
// delivering each to the owning channel. Messages longer than the
// channel's limit are split on line boundaries where possible.
func (m *Manager) RouteOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		ch, found := m.channels[msg.Channel]
		if !found {
			logger.WarnCF("channels", "Outbound message for unknown channel", map[string]any{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
			})
			continue
		}

		for _, part := range splitForChannel(ch, msg.Content) {
			out := msg
			out.Content = part
			if err := ch.Send(ctx, out); err != nil {
				logger.ErrorCF("channels", "Send failed", map[string]any{
					"channel": msg.Channel,
					"chat_id": msg.ChatID,
					"error":   err.Error(),
				})
				break
			}
		}
	}
}

func splitForChannel(ch Channel, content string) []string {
	limit := 0
	if p, ok := ch.(MessageLengthProvider); ok {
		limit = p.MaxMessageLength()
	}
	return SplitMessage(content, limit)
}

// SplitMessage splits content into rune-bounded chunks of at most limit,
// preferring newline boundaries. A limit of 0 means no splitting.
func SplitMessage(content string, limit int) []string {
	if limit <= 0 || len([]rune(content)) <= limit {
		return []string{content}
	}

	var parts []string
	runes := []rune(content)
	for len(runes) > limit {
		cut := limit
		// Look back for a newline to avoid splitting mid-line.
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
