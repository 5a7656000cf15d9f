package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/metrics"
)

const speakerDedupTTL = time.Hour

// Speaker subscribes bot.speak and hands each event to the Delivery.
// Envelope IDs are remembered so an at-least-once redelivery never
// sends the same message twice.
type Speaker struct {
	bus      bus.Bus
	delivery Delivery
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewSpeaker creates the speaker.
func NewSpeaker(b bus.Bus, delivery Delivery) *Speaker {
	return &Speaker{
		bus:      b,
		delivery: delivery,
		logger:   slog.Default().With("component", "speaker"),
		seen:     make(map[string]time.Time),
	}
}

// Bind registers the subscription. Must run before the bus starts.
func (s *Speaker) Bind() {
	s.bus.Subscribe(bus.TopicBotSpeak, s.onSpeak)
}

func (s *Speaker) alreadySent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.seen[id]
	return ok && time.Now().Before(exp)
}

func (s *Speaker) markSent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, exp := range s.seen {
		if now.After(exp) {
			delete(s.seen, k)
		}
	}
	s.seen[id] = now.Add(speakerDedupTTL)
}

func (s *Speaker) onSpeak(ctx context.Context, env bus.Envelope) error {
	if s.alreadySent(env.ID) {
		metrics.BusConsumed.WithLabelValues(env.Topic, "duplicate").Inc()
		return nil
	}

	var evt bus.SpeakEvent
	if err := env.Decode(&evt); err != nil {
		s.logger.Error("Dropping malformed speak event", "envelope_id", env.ID, "error", err)
		return nil
	}
	if evt.Content == "" || evt.ChannelID == "" {
		s.logger.Warn("Dropping empty speak event", "envelope_id", env.ID)
		return nil
	}

	if err := s.delivery.Send(ctx, evt.ChannelID, evt.Content); err != nil {
		s.logger.Error("Delivery failed", "channel_id", evt.ChannelID, "error", err)
		return err
	}
	s.markSent(env.ID)
	return nil
}
