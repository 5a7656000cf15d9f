package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/metrics"
)

// RedisBus is the lightweight broadcast backend over Redis Pub/Sub.
// Events reach only subscribers connected at publish time and are never
// stored, so it is suitable only for topics whose loss is tolerable.
type RedisBus struct {
	cfg    Config
	client *redis.Client

	mu      sync.Mutex
	subs    map[string][]Handler
	pubsub  *redis.PubSub
	started bool

	wg sync.WaitGroup
}

// NewRedisBus connects to the configured Redis server.
func NewRedisBus(cfg Config) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	return &RedisBus{cfg: cfg, client: client, subs: make(map[string][]Handler)}, nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload any) core.Result[core.Unit] {
	return publishPayload(ctx, b, topic, payload)
}

func (b *RedisBus) PublishEnvelope(ctx context.Context, env Envelope) core.Result[core.Unit] {
	data, err := json.Marshal(env)
	if err != nil {
		metrics.BusPublished.WithLabelValues(env.Topic, "err").Inc()
		return core.Err[core.Unit](core.UnexpectedError("encode envelope for %s: %v", env.Topic, err))
	}
	if err := b.client.Publish(ctx, env.Topic, data).Err(); err != nil {
		metrics.BusPublished.WithLabelValues(env.Topic, "err").Inc()
		return core.Err[core.Unit](core.UnexpectedError("publish to %s: %v", env.Topic, err))
	}
	metrics.BusPublished.WithLabelValues(env.Topic, "ok").Inc()
	return core.Ok(core.Unit{})
}

func (b *RedisBus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		panic("bus: Subscribe after Start")
	}
	b.subs[topic] = append(b.subs[topic], h)
}

func (b *RedisBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.New("bus already started")
	}

	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis at %s: %w", b.cfg.Redis.Addr, err)
	}

	topics := make([]string, 0, len(b.subs))
	for topic := range b.subs {
		topics = append(topics, topic)
	}
	if len(topics) > 0 {
		b.pubsub = b.client.Subscribe(ctx, topics...)
		b.wg.Add(1)
		go b.consume(ctx)
	}

	b.started = true
	return nil
}

func (b *RedisBus) consume(ctx context.Context) {
	defer b.wg.Done()

	for msg := range b.pubsub.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			slog.Error("Dropping malformed event", "topic", msg.Channel, "error", err)
			metrics.BusConsumed.WithLabelValues(msg.Channel, "err").Inc()
			continue
		}

		b.mu.Lock()
		handlers := append([]Handler(nil), b.subs[msg.Channel]...)
		b.mu.Unlock()

		for _, h := range handlers {
			// Broadcast semantics: a failed handler is logged, never
			// redelivered.
			if err := h(ctx, env); err != nil {
				slog.Error("Subscriber failed", "topic", msg.Channel, "event_id", env.ID, "error", err)
				metrics.BusConsumed.WithLabelValues(msg.Channel, "err").Inc()
				continue
			}
			metrics.BusConsumed.WithLabelValues(msg.Channel, "ok").Inc()
		}
	}
}

func (b *RedisBus) Close() error {
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
	b.wg.Wait()
	return b.client.Close()
}

var _ Bus = (*RedisBus)(nil)
