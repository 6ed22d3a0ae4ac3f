package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/config"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
	"github.com/tinyland-inc/relayclaw/pkg/retry"
)

// bridgeEnvelope is the wire format shared with external bridge peers.
type bridgeEnvelope struct {
	Type      string `json:"type"`
	SenderID  string `json:"sender_id,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// BridgeChannel maintains a websocket connection to a generic bridge
// endpoint, reconnecting with backoff when the peer drops.
type BridgeChannel struct {
	*BaseChannel
	url    string
	token  string
	cancel context.CancelFunc

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewBridgeChannel(cfg config.BridgeConfig, msgBus *bus.MessageBus) *BridgeChannel {
	return &BridgeChannel{
		BaseChannel: NewBaseChannel("bridge", msgBus, cfg.AllowFrom),
		url:         cfg.URL,
		token:       cfg.Token,
	}
}

func (c *BridgeChannel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.connectLoop(runCtx)
	c.SetRunning(true)
	return nil
}

func (c *BridgeChannel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	c.SetRunning(false)
	return nil
}

func (c *BridgeChannel) connectLoop(ctx context.Context) {
	policy := retry.Policy{
		MaxAttempts:  0,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}

	failures := 0
	for ctx.Err() == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			delay := policy.Delay(failures)
			failures++
			logger.WarnCF("bridge", "Connect failed, retrying", map[string]any{
				"error":    err.Error(),
				"delay_ms": delay.Milliseconds(),
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		logger.InfoCF("bridge", "Connected", map[string]any{"url": c.url})

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}
}

func (c *BridgeChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	return conn, err
}

func (c *BridgeChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	for {
		var env bridgeEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				logger.WarnCF("bridge", "Connection lost", map[string]any{
					"error": err.Error(),
				})
			}
			return
		}
		if env.Type != "message" || env.Content == "" {
			continue
		}
		c.HandleMessage(env.MessageID, env.SenderID, env.ChatID, env.Content, nil)
	}
}

func (c *BridgeChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("bridge not connected")
	}

	payload, err := json.Marshal(bridgeEnvelope{
		Type:      "message",
		ChatID:    msg.ChatID,
		Content:   msg.Content,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("encoding bridge message: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("sending bridge message: %w", err)
	}
	return nil
}
