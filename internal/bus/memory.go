package bus

import (
	"context"
	"log/slog"
	"sync"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/metrics"
)

// MemoryBus is an in-process broadcast backend. Delivery is synchronous
// and reaches only handlers subscribed at publish time, which matches
// the lightweight-broadcast contract. Tests also use it to assert on
// published envelopes.
type MemoryBus struct {
	mu        sync.Mutex
	handlers  map[string][]Handler
	published []Envelope
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, payload any) core.Result[core.Unit] {
	return publishPayload(ctx, b, topic, payload)
}

func (b *MemoryBus) PublishEnvelope(ctx context.Context, env Envelope) core.Result[core.Unit] {
	b.mu.Lock()
	b.published = append(b.published, env)
	handlers := append([]Handler(nil), b.handlers[env.Topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, env); err != nil {
			// No redelivery on a broadcast backend.
			slog.Error("Subscriber failed", "topic", env.Topic, "event_id", env.ID, "error", err)
			metrics.BusConsumed.WithLabelValues(env.Topic, "err").Inc()
			continue
		}
		metrics.BusConsumed.WithLabelValues(env.Topic, "ok").Inc()
	}

	metrics.BusPublished.WithLabelValues(env.Topic, "ok").Inc()
	return core.Ok(core.Unit{})
}

func (b *MemoryBus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

func (b *MemoryBus) Start(ctx context.Context) error {
	return nil
}

func (b *MemoryBus) Close() error {
	return nil
}

// Published returns a copy of every envelope published so far.
func (b *MemoryBus) Published() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Envelope(nil), b.published...)
}

// PublishedTo returns the envelopes published to one topic.
func (b *MemoryBus) PublishedTo(topic string) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Envelope
	for _, env := range b.published {
		if env.Topic == topic {
			out = append(out, env)
		}
	}
	return out
}

var _ Bus = (*MemoryBus)(nil)
