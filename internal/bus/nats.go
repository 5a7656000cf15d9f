package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"go.botmind.dev/internal/core"
	"go.botmind.dev/internal/metrics"
)

// streamSubjects covers every topic namespace the platform uses. One
// stream holds all topics; per-group durable consumers filter by topic.
var streamSubjects = []string{"system.>", "discord.>", "bot.>", "sns.>"}

// NATSBus is the durable backend. Events are appended to a JetStream
// stream; each subscriber group keeps its own read cursor, so delivery
// survives subscriber restarts and offline groups replay from where
// they left off. Publish order per producer is preserved within a
// topic.
type NATSBus struct {
	cfg      Config
	conn     *nats.Conn
	js       jetstream.JetStream
	embedded *server.Server

	mu      sync.Mutex
	subs    map[string][]Handler
	iters   []jetstream.MessagesContext
	started bool

	wg sync.WaitGroup
}

// NewNATSBus connects to an external NATS server.
func NewNATSBus(cfg Config) (*NATSBus, error) {
	b := &NATSBus{cfg: cfg, subs: make(map[string][]Handler)}
	if err := b.connect(cfg.NATS.URL); err != nil {
		return nil, err
	}
	return b, nil
}

// NewEmbeddedNATSBus starts an in-process NATS server with JetStream
// and connects to it. The server picks a free port; data persists under
// the configured data directory.
func NewEmbeddedNATSBus(cfg Config) (*NATSBus, error) {
	if err := os.MkdirAll(cfg.NATS.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create bus data directory: %w", err)
	}

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		JetStream: true,
		StoreDir:  cfg.NATS.DataDir,
		NoLog:     true,
		NoSigs:    true,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server failed to start within timeout")
	}
	slog.Info("Embedded NATS server started", "url", ns.ClientURL(), "data_dir", cfg.NATS.DataDir)

	b := &NATSBus{cfg: cfg, subs: make(map[string][]Handler), embedded: ns}
	if err := b.connect(ns.ClientURL()); err != nil {
		ns.Shutdown()
		return nil, err
	}
	return b, nil
}

func (b *NATSBus) connect(url string) error {
	conn, err := nats.Connect(url,
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create JetStream context: %w", err)
	}

	b.conn = conn
	b.js = js
	return nil
}

func (b *NATSBus) Publish(ctx context.Context, topic string, payload any) core.Result[core.Unit] {
	return publishPayload(ctx, b, topic, payload)
}

func (b *NATSBus) PublishEnvelope(ctx context.Context, env Envelope) core.Result[core.Unit] {
	data, err := json.Marshal(env)
	if err != nil {
		metrics.BusPublished.WithLabelValues(env.Topic, "err").Inc()
		return core.Err[core.Unit](core.UnexpectedError("encode envelope for %s: %v", env.Topic, err))
	}

	// The envelope ID doubles as the JetStream deduplication ID, so an
	// outbox replay of an already-delivered publish is dropped by the
	// stream inside the dedup window.
	msg := &nats.Msg{
		Subject: env.Topic,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Nats-Msg-Id", env.ID)

	if _, err := b.js.PublishMsg(ctx, msg); err != nil {
		metrics.BusPublished.WithLabelValues(env.Topic, "err").Inc()
		return core.Err[core.Unit](core.UnexpectedError("publish to %s: %v", env.Topic, err))
	}
	metrics.BusPublished.WithLabelValues(env.Topic, "ok").Inc()
	return core.Ok(core.Unit{})
}

func (b *NATSBus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		panic("bus: Subscribe after Start")
	}
	b.subs[topic] = append(b.subs[topic], h)
}

// Start ensures the stream exists and begins one durable consumer per
// subscribed topic. Consumer names derive from the group and topic so a
// restarted process resumes from its cursor.
func (b *NATSBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.New("bus already started")
	}

	stream, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     b.cfg.NATS.StreamName,
		Subjects: streamSubjects,
		MaxAge:   b.cfg.NATS.MaxAge,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", b.cfg.NATS.StreamName, err)
	}

	for topic, handlers := range b.subs {
		name := consumerName(b.cfg.Group, topic)
		consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
			Name:          name,
			Durable:       name,
			FilterSubject: topic,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       b.cfg.NATS.AckWait,
			MaxDeliver:    b.cfg.NATS.MaxDeliver,
			DeliverPolicy: jetstream.DeliverAllPolicy,
			ReplayPolicy:  jetstream.ReplayInstantPolicy,
			MaxAckPending: 256,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", name, err)
		}

		iter, err := consumer.Messages()
		if err != nil {
			return fmt.Errorf("open message iterator for %s: %w", name, err)
		}
		b.iters = append(b.iters, iter)

		b.wg.Add(1)
		go b.consume(ctx, topic, handlers, iter)
	}

	b.started = true
	return nil
}

func (b *NATSBus) consume(ctx context.Context, topic string, handlers []Handler, iter jetstream.MessagesContext) {
	defer b.wg.Done()

	for {
		msg, err := iter.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || ctx.Err() != nil {
				return
			}
			slog.Error("Bus iterator error", "topic", topic, "error", err)
			continue
		}

		var env Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			// Malformed events can never succeed; acknowledge so the
			// cursor advances past them.
			slog.Error("Dropping malformed event", "topic", topic, "error", err)
			metrics.BusConsumed.WithLabelValues(topic, "err").Inc()
			_ = msg.Ack()
			continue
		}

		failed := false
		for _, h := range handlers {
			if err := h(ctx, env); err != nil {
				slog.Error("Subscriber failed", "topic", topic, "event_id", env.ID, "error", err)
				failed = true
			}
		}
		if failed {
			// Do not advance the cursor; the event is redelivered after
			// the ack deadline up to MaxDeliver attempts.
			metrics.BusConsumed.WithLabelValues(topic, "err").Inc()
			_ = msg.Nak()
			continue
		}
		metrics.BusConsumed.WithLabelValues(topic, "ok").Inc()
		_ = msg.Ack()
	}
}

func (b *NATSBus) Close() error {
	b.mu.Lock()
	iters := b.iters
	b.iters = nil
	b.mu.Unlock()

	for _, iter := range iters {
		iter.Stop()
	}
	b.wg.Wait()
	b.conn.Close()
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
	return nil
}

// consumerName builds a durable consumer identifier; JetStream forbids
// dots in consumer names.
func consumerName(group, topic string) string {
	return group + "-" + strings.ReplaceAll(topic, ".", "-")
}

var _ Bus = (*NATSBus)(nil)
