// Package heartbeat posts periodic gateway status summaries to a chat.
package heartbeat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/config"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
	"github.com/tinyland-inc/relayclaw/pkg/relay"
)

type Service struct {
	cfg   config.HeartbeatConfig
	bus   *bus.MessageBus
	stats *relay.Stats
	gron  *gronx.Gronx

	// tick interval, overridable in tests
	interval time.Duration
}

func NewService(cfg config.HeartbeatConfig, msgBus *bus.MessageBus, stats *relay.Stats) *Service {
	return &Service{
		cfg:      cfg,
		bus:      msgBus,
		stats:    stats,
		gron:     gronx.New(),
		interval: time.Minute,
	}
}

// Start blocks until ctx is done, firing a summary whenever the cron
// schedule is due. Callers run it in a goroutine.
func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	if !s.gron.IsValid(s.cfg.Schedule) {
		return fmt.Errorf("invalid heartbeat schedule %q", s.cfg.Schedule)
	}

	logger.InfoCF("heartbeat", "Heartbeat enabled", map[string]any{
		"schedule": s.cfg.Schedule,
		"channel":  s.cfg.Channel,
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			due, err := s.gron.IsDue(s.cfg.Schedule, now)
			if err != nil {
				logger.WarnCF("heartbeat", "Schedule check failed", map[string]any{
					"error": err.Error(),
				})
				continue
			}
			if due {
				s.fire(ctx)
			}
		}
	}
}

func (s *Service) fire(ctx context.Context) {
	err := s.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel: s.cfg.Channel,
		ChatID:  s.cfg.ChatID,
		Content: s.Summary(),
	})
	if err != nil {
		logger.WarnCF("heartbeat", "Publish failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// Summary renders the current relay counters as a short chat message.
func (s *Service) Summary() string {
	snap := s.stats.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("relayclaw heartbeat\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %d\n", k, snap[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
