package bus

// InboundMessage is a chat event received from a channel, headed for the
// gateway loop.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	MessageID string            `json:"message_id,omitempty"` // platform message ID
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a result or notice headed back to a chat platform.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}
