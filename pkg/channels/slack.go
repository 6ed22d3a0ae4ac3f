package channels

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/config"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
)

const slackMaxMessageLength = 40000

// SlackChannel connects over Socket Mode so no public inbound endpoint
// is required for chat events.
type SlackChannel struct {
	*BaseChannel
	api    *slack.Client
	client *socketmode.Client
	cancel context.CancelFunc
}

func NewSlackChannel(cfg config.SlackConfig, msgBus *bus.MessageBus) *SlackChannel {
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	return &SlackChannel{
		BaseChannel: NewBaseChannel("slack", msgBus, cfg.AllowFrom,
			WithMaxMessageLength(slackMaxMessageLength)),
		api:    api,
		client: socketmode.New(api),
	}
}

func (c *SlackChannel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.eventLoop(runCtx)
	go func() {
		if err := c.client.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("slack", "Socket mode stopped", map[string]any{
				"error": err.Error(),
			})
		}
		c.SetRunning(false)
	}()

	c.SetRunning(true)
	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.SetRunning(false)
	return nil
}

func (c *SlackChannel) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.client.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			c.client.Ack(*evt.Request)
			c.handleEvent(apiEvent)
		}
	}
}

func (c *SlackChannel) handleEvent(evt slackevents.EventsAPIEvent) {
	if evt.Type != slackevents.CallbackEvent {
		return
	}
	msg, ok := evt.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Ignore bot echoes and edits.
	if msg.BotID != "" || msg.SubType != "" || msg.Text == "" {
		return
	}

	c.HandleMessage(msg.TimeStamp, msg.User, msg.Channel, msg.Text, nil)
}

func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_, _, err := c.api.PostMessageContext(ctx, msg.ChatID,
		slack.MsgOptionText(msg.Content, false))
	if err != nil {
		return fmt.Errorf("sending slack message: %w", err)
	}
	return nil
}
