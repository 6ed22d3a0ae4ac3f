package channels

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"

	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/config"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
)

const telegramMaxMessageLength = 4096

type TelegramChannel struct {
	*BaseChannel
	bot    *telego.Bot
	cancel context.CancelFunc
}

func NewTelegramChannel(cfg config.TelegramConfig, msgBus *bus.MessageBus) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", msgBus, cfg.AllowFrom,
			WithMaxMessageLength(telegramMaxMessageLength)),
		bot: bot,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("starting telegram long polling: %w", err)
	}

	go func() {
		for update := range updates {
			c.handleUpdate(update)
		}
		c.SetRunning(false)
	}()

	c.SetRunning(true)
	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.SetRunning(false)
	return nil
}

func (c *TelegramChannel) handleUpdate(update telego.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	senderID := ""
	if msg.From != nil {
		senderID = strconv.FormatInt(msg.From.ID, 10)
		if msg.From.Username != "" {
			senderID = senderID + "|" + msg.From.Username
		}
	}

	c.HandleMessage(
		strconv.Itoa(msg.MessageID),
		senderID,
		strconv.FormatInt(msg.Chat.ID, 10),
		msg.Text,
		nil,
	)
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}

	_, err = c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   msg.Content,
	})
	if err != nil {
		logger.ErrorCF("telegram", "Send failed", map[string]any{
			"chat_id": msg.ChatID,
			"error":   err.Error(),
		})
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}
