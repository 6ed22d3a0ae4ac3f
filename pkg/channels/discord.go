package channels

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/config"
)

const discordMaxMessageLength = 2000

type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
}

func NewDiscordChannel(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	c := &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", msgBus, cfg.AllowFrom,
			WithMaxMessageLength(discordMaxMessageLength)),
		session: session,
	}
	session.AddHandler(c.onMessageCreate)
	return c, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	c.SetRunning(true)
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	return c.session.Close()
}

func (c *DiscordChannel) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if m.Content == "" {
		return
	}

	senderID := m.Author.ID
	if m.Author.Username != "" {
		senderID = senderID + "|" + m.Author.Username
	}

	c.HandleMessage(m.ID, senderID, m.ChannelID, m.Content, nil)
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	_, err := c.session.ChannelMessageSend(msg.ChatID, msg.Content)
	if err != nil {
		return fmt.Errorf("sending discord message: %w", err)
	}
	return nil
}
