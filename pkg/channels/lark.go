package channels

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/config"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
)

// LarkChannel receives events over the long connection (websocket), so no
// public inbound endpoint is required.
type LarkChannel struct {
	*BaseChannel
	client   *lark.Client
	wsClient *larkws.Client
	cancel   context.CancelFunc
}

func NewLarkChannel(cfg config.LarkConfig, msgBus *bus.MessageBus) *LarkChannel {
	c := &LarkChannel{
		BaseChannel: NewBaseChannel("lark", msgBus, cfg.AllowFrom),
		client:      lark.NewClient(cfg.AppID, cfg.AppSecret),
	}

	handler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			c.handleMessageEvent(event)
			return nil
		})

	c.wsClient = larkws.NewClient(cfg.AppID, cfg.AppSecret,
		larkws.WithEventHandler(handler),
		larkws.WithLogLevel(larkcore.LogLevelWarn),
	)
	return c
}

func (c *LarkChannel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		if err := c.wsClient.Start(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("lark", "Long connection stopped", map[string]any{
				"error": err.Error(),
			})
		}
		c.SetRunning(false)
	}()

	c.SetRunning(true)
	return nil
}

func (c *LarkChannel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.SetRunning(false)
	return nil
}

func (c *LarkChannel) handleMessageEvent(event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return
	}
	msg := event.Event.Message
	if msg.MessageType == nil || *msg.MessageType != "text" || msg.Content == nil {
		return
	}

	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(*msg.Content), &content); err != nil || content.Text == "" {
		return
	}

	senderID := ""
	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil && event.Event.Sender.SenderId.OpenId != nil {
		senderID = *event.Event.Sender.SenderId.OpenId
	}
	messageID, chatID := "", ""
	if msg.MessageId != nil {
		messageID = *msg.MessageId
	}
	if msg.ChatId != nil {
		chatID = *msg.ChatId
	}

	c.HandleMessage(messageID, senderID, chatID, content.Text, nil)
}

func (c *LarkChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	content := larkim.NewTextMsgBuilder().Text(msg.Content).Build()

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(msg.ChatID).
			MsgType(larkim.MsgTypeText).
			Content(content).
			Build()).
		Build()

	resp, err := c.client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("sending lark message: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("sending lark message: code %d: %s", resp.Code, resp.Msg)
	}
	return nil
}
