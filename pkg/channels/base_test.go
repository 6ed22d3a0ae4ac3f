package channels

import (
	"context"
	"testing"

	"github.com/tinyland-inc/relayclaw/pkg/bus"
)

func TestIsAllowedEmptyListAllowsEveryone(t *testing.T) {
	ch := NewBaseChannel("test", bus.NewMessageBus(), nil)
	if !ch.IsAllowed("anyone") {
		t.Error("empty allowlist should allow all senders")
	}
}

func TestIsAllowedMatching(t *testing.T) {
	tests := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{"exact id", []string{"12345"}, "12345", true},
		{"compound sender, id in list", []string{"12345"}, "12345|alice", true},
		{"compound sender, username in list", []string{"alice"}, "12345|alice", true},
		{"username with at prefix", []string{"@alice"}, "12345|alice", true},
		{"compound allow entry", []string{"12345|alice"}, "12345", true},
		{"not listed", []string{"12345"}, "99999", false},
		{"wrong username", []string{"@alice"}, "99999|bob", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewBaseChannel("test", bus.NewMessageBus(), tt.allowList)
			if got := ch.IsAllowed(tt.senderID); got != tt.want {
				t.Errorf("IsAllowed(%q) with %v: got %v, want %v",
					tt.senderID, tt.allowList, got, tt.want)
			}
		})
	}
}

func TestHandleMessagePublishesToBus(t *testing.T) {
	msgBus := bus.NewMessageBus()
	ch := NewBaseChannel("test", msgBus, nil)

	ch.HandleMessage("m1", "42|alice", "chat-1", "hello", map[string]string{"k": "v"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msg, ok := msgBus.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected inbound message")
	}
	if msg.Channel != "test" || msg.SenderID != "42|alice" || msg.ChatID != "chat-1" ||
		msg.Content != "hello" || msg.MessageID != "m1" || msg.Metadata["k"] != "v" {
		t.Errorf("message mismatch: %+v", msg)
	}
}

func TestHandleMessageDropsDisallowedSender(t *testing.T) {
	msgBus := bus.NewMessageBus()
	ch := NewBaseChannel("test", msgBus, []string{"42"})

	ch.HandleMessage("m1", "99", "chat-1", "hello", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := msgBus.ConsumeInbound(ctx); ok {
		t.Error("disallowed sender's message should not reach the bus")
	}
}

func TestMaxMessageLengthOption(t *testing.T) {
	ch := NewBaseChannel("test", bus.NewMessageBus(), nil, WithMaxMessageLength(100))
	if got := ch.MaxMessageLength(); got != 100 {
		t.Errorf("MaxMessageLength: got %d, want 100", got)
	}
}
