// Package bot hosts the low-latency surface process: it delivers
// bot.speak events to the chat platform and turns inbound messages
// into commands, keeping every slow operation on the other side of
// the bus.
package bot

import (
	"context"
	"log/slog"
)

// Delivery sends a message to a platform channel. The Discord client
// lives behind this interface; tests and local runs use fakes.
type Delivery interface {
	Send(ctx context.Context, channelID, content string) error
}

// LogDelivery writes messages to the log instead of a platform.
// Used in dev mode and as a last-resort fallback.
type LogDelivery struct{}

func (LogDelivery) Send(ctx context.Context, channelID, content string) error {
	slog.Info("Delivering message", "channel_id", channelID, "content", content)
	return nil
}

var _ Delivery = LogDelivery{}
