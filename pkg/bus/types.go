package bus

import "context"

// InboundMessage is one message arriving from a channel, destined for
// the memory runtime (a recall/search or a remember/store call).
type InboundMessage struct {
	Channel    string
	SenderID   string
	ChatID     string
	Content    string
	Media      []string
	SessionKey string
	Metadata   map[string]string
}

// OutboundMessage is one reply destined for a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}

// MessageHandler processes an inbound message for one channel.
type MessageHandler func(ctx context.Context, msg InboundMessage) (OutboundMessage, error)
