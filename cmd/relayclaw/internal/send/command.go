package send

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal"
	"github.com/tinyland-inc/relayclaw/pkg/bus"
	"github.com/tinyland-inc/relayclaw/pkg/channels"
)

func NewSendCommand() *cobra.Command {
	var channel string
	var chatID string

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a one-off message to a chat",
		Args:  cobra.ExactArgs(1),
		Example: `  relayclaw send --channel telegram --chat 123456 "gateway deployed"
  relayclaw send --channel slack --chat C0123456 "ping"`,
		RunE: func(_ *cobra.Command, args []string) error {
			return sendCmd(channel, chatID, args[0])
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Channel name (telegram, slack, discord, lark, bridge)")
	cmd.Flags().StringVar(&chatID, "chat", "", "Target chat ID")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("chat")

	return cmd
}

func sendCmd(channel, chatID, message string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	manager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("error creating channel manager: %w", err)
	}

	ch, ok := manager.GetChannel(channel)
	if !ok {
		return fmt.Errorf("channel %q is not enabled (enabled: %s)", channel, manager.GetEnabledChannels())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, part := range channels.SplitMessage(message, maxLength(ch)) {
		if err := ch.Send(ctx, bus.OutboundMessage{
			Channel: channel,
			ChatID:  chatID,
			Content: part,
		}); err != nil {
			return fmt.Errorf("sending to %s: %w", channel, err)
		}
	}

	fmt.Println("✓ Message sent")
	return nil
}

func maxLength(ch channels.Channel) int {
	if p, ok := ch.(channels.MessageLengthProvider); ok {
		return p.MaxMessageLength()
	}
	return 0
}
