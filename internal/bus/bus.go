// Package bus provides the cross-process event bus. Topics are a flat
// namespace of dot-separated strings shared between the bot and worker
// processes; delivery is at-least-once on every backend, so subscribers
// must be idempotent with respect to the envelope ID.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/tsid"
)

// Topic names form the wire-level contract between processes. Payload
// schemas are versioned independently; the bus carries no schema
// negotiation.
const (
	TopicHeartbeat            = "system.heartbeat"
	TopicDiscordMessage       = "discord.message"
	TopicDiscordDirectMessage = "discord.direct_message"
	TopicBotSpeak             = "bot.speak"
	TopicSNSUpdate            = "sns.update"
)

// Envelope is the immutable unit placed on the bus. The ID is the
// idempotency token: a subscriber may observe the same ID more than
// once and must suppress duplicate side effects.
type Envelope struct {
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlationId,omitempty"`
	PublishedAt   time.Time       `json:"publishedAt"`
}

// NewEnvelope builds an envelope with a fresh ID for the given payload.
func NewEnvelope(topic string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload for %s: %w", topic, err)
	}
	return Envelope{
		ID:            tsid.Generate(),
		Topic:         topic,
		Payload:       data,
		CorrelationID: uuid.NewString(),
		PublishedAt:   time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler processes one delivered envelope. Returning an error asks the
// backend not to advance its cursor so the envelope is redelivered;
// backends without redelivery log and drop. Handlers must not panic.
type Handler func(ctx context.Context, env Envelope) error

// Bus is the capability interface implemented by every backend. Calling
// code never branches on backend identity; the backend is chosen once
// by configuration.
//
// Subscribe must be called before Start; subscriptions live for the
// process lifetime. Publish is safe for concurrent use after Start.
type Bus interface {
	// Publish wraps the payload in a fresh envelope and publishes it.
	Publish(ctx context.Context, topic string, payload any) core.Result[core.Unit]

	// PublishEnvelope publishes a prebuilt envelope. Used by the outbox
	// relay so replays keep the original idempotency token.
	PublishEnvelope(ctx context.Context, env Envelope) core.Result[core.Unit]

	// Subscribe binds a handler to a topic. Registration only; delivery
	// begins at Start.
	Subscribe(topic string, h Handler)

	// Start connects the backend and begins delivering to subscribers.
	Start(ctx context.Context) error

	// Close stops delivery and releases the backend connection.
	Close() error
}

// publishPayload is the shared Publish-in-terms-of-PublishEnvelope
// helper used by all backends.
func publishPayload(ctx context.Context, b Bus, topic string, payload any) core.Result[core.Unit] {
	env, err := NewEnvelope(topic, payload)
	if err != nil {
		return core.Err[core.Unit](core.UnexpectedError("encode event for %s: %v", topic, err))
	}
	return b.PublishEnvelope(ctx, env)
}
