package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal"
	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/channels"
	"github.com/tinyland-inc/relayclaw/pkg/config"
	"github.com/tinyland-inc/relayclaw/pkg/correlate"
	"github.com/tinyland-inc/relayclaw/pkg/executor"
	"github.com/tinyland-inc/relayclaw/pkg/heartbeat"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
	"github.com/tinyland-inc/relayclaw/pkg/relay"
	"github.com/tinyland-inc/relayclaw/pkg/retry"
)

func gatewayCmd(debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logger.Sync()
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	if cfg.Callback.Secret == "" {
		fmt.Println("⚠ Warning: callback authentication disabled (allow_insecure)")
	}

	store, ready, closeStore, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	stats := relay.NewStats()
	execClient := executor.NewClient(
		cfg.Executor.BaseURL,
		cfg.Executor.APIKey,
		time.Duration(cfg.Executor.TimeoutSeconds)*time.Second,
	)
	tracker := relay.NewTracker(
		store,
		retryPolicy(cfg.Executor.Retry),
		time.Duration(cfg.Executor.TimeoutSeconds)*time.Second,
		time.Duration(cfg.Store.TTLSeconds)*time.Second,
		stats,
	)

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("error creating channel manager: %w", err)
	}

	auth := relay.NewAuthenticator([]relay.Source{
		{Kind: relay.SourceHeader, Name: cfg.Callback.HeaderPrimary},
		{Kind: relay.SourceHeader, Name: cfg.Callback.HeaderLegacy},
		{Kind: relay.SourceQuery, Name: cfg.Callback.Field},
		{Kind: relay.SourceBody, Name: cfg.Callback.Field},
	}, cfg.Callback.Secret)
	resolver := relay.NewResolver(auth, store, &busNotifier{bus: msgBus}, stats)
	server := relay.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, cfg.Callback.Path, resolver, stats, ready)

	heartbeatService := heartbeat.NewService(cfg.Heartbeat, msgBus, stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Start(); err != nil {
			logger.ErrorCF("gateway", "Callback server error", map[string]any{"error": err.Error()})
		}
	}()

	if err := channelManager.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
	}
	go channelManager.RouteOutbound(ctx)
	go heartbeatService.Start(ctx)
	go dispatchLoop(ctx, cfg, msgBus, tracker, execClient)

	enabledChannels := channelManager.GetEnabledChannels()
	if len(enabledChannels) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", enabledChannels)
	} else {
		fmt.Println("⚠ Warning: No channels enabled")
	}
	fmt.Printf("✓ Gateway started on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Printf("✓ Callback endpoint at %s\n", callbackURL(cfg))
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.WarnCF("gateway", "Server shutdown error", map[string]any{"error": err.Error()})
	}
	channelManager.StopAll(shutdownCtx)
	fmt.Println("✓ Gateway stopped")

	return nil
}

// buildStore returns the correlation store, an optional readiness probe
// for /readyz, and a close function.
func buildStore(cfg *config.Config) (correlate.Store, func(context.Context) error, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		rs := correlate.NewRedisStore(correlate.RedisOptions{
			Addr:      cfg.Store.Redis.Addr,
			Password:  cfg.Store.Redis.Password,
			DB:        cfg.Store.Redis.DB,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			// The gateway still starts; the store may come up later and
			// /readyz reports the truth in the meantime.
			logger.WarnCF("gateway", "Redis not reachable at startup", map[string]any{
				"addr":  cfg.Store.Redis.Addr,
				"error": err.Error(),
			})
		}
		return rs, rs.Ping, func() { rs.Close() }, nil
	case "memory":
		fmt.Println("⚠ Warning: memory store holds records in-process; use redis for production")
		return correlate.NewMemoryStore(), nil, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("store.backend %q is not supported", cfg.Store.Backend)
	}
}

func retryPolicy(rc config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:  rc.MaxAttempts,
		InitialDelay: time.Duration(rc.InitialDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(rc.MaxDelayMS) * time.Millisecond,
		Multiplier:   rc.Multiplier,
		ShouldRetry:  executor.Retryable,
	}
}

func callbackURL(cfg *config.Config) string {
	base := cfg.Gateway.PublicURL
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	return strings.TrimRight(base, "/") + cfg.Callback.Path
}

// dispatchLoop consumes inbound chat messages and submits each to the
// executor under the tracker's retry policy.
func dispatchLoop(
	ctx context.Context,
	cfg *config.Config,
	msgBus *bus.MessageBus,
	tracker *relay.Tracker,
	execClient *executor.Client,
) {
	cbURL := callbackURL(cfg)
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		go dispatchOne(ctx, cfg, msgBus, tracker, execClient, cbURL, msg)
	}
}

func dispatchOne(
	ctx context.Context,
	cfg *config.Config,
	msgBus *bus.MessageBus,
	tracker *relay.Tracker,
	execClient *executor.Client,
	cbURL string,
	msg bus.InboundMessage,
) {
	requestID, err := tracker.Dispatch(ctx, relay.Dispatch{
		Channel:         msg.Channel,
		ChatID:          msg.ChatID,
		OriginMessageID: msg.MessageID,
		Metadata:        msg.Metadata,
	}, func(ctx context.Context, requestID string) error {
		return execClient.Submit(ctx, executor.Task{
			RequestID:       requestID,
			Prompt:          msg.Content,
			Channel:         msg.Channel,
			ChatID:          msg.ChatID,
			OriginMessageID: msg.MessageID,
			Metadata:        msg.Metadata,
			CallbackURL:     cbURL,
		})
	})
	if err != nil {
		logger.ErrorCF("gateway", "Dispatch failed", map[string]any{
			"channel": msg.Channel,
			"chat_id": msg.ChatID,
			"error":   err.Error(),
		})
		_ = msgBus.PublishOutbound(ctx, bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: "Sorry, your request could not be submitted. Please try again later.",
		})
		return
	}

	if cfg.Gateway.AckOnDispatch {
		_ = msgBus.PublishOutbound(ctx, bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: "Working on it...",
		})
	}
	logger.DebugCF("gateway", "Request accepted", map[string]any{
		"request_id": requestID,
		"channel":    msg.Channel,
	})
}

// busNotifier delivers resolved results back to the originating chat via
// the outbound bus.
type busNotifier struct {
	bus *bus.MessageBus
}

func (n *busNotifier) Notify(ctx context.Context, rec correlate.Record, res relay.Result) error {
	content := res.Output
	if !res.Success {
		content = "Task failed: " + res.Error
		if res.Error == "" {
			content = "Task failed."
		}
	}
	if content == "" {
		content = "Task completed."
	}
	return n.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel: rec.Channel,
		ChatID:  rec.ChatID,
		Content: content,
	})
}
