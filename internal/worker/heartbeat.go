package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.botmind.dev/internal/bus"
)

// Heartbeat publishes system.heartbeat at a fixed interval. It is the
// clock that drives spontaneous behavior; losing a tick is harmless,
// the next one comes.
type Heartbeat struct {
	bus      bus.Bus
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastErr  error
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewHeartbeat creates the producer.
func NewHeartbeat(b bus.Bus, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		bus:      b,
		interval: interval,
		logger:   slog.Default().With("component", "heartbeat"),
		stopped:  make(chan struct{}),
	}
}

// Name implements lifecycle.Service.
func (h *Heartbeat) Name() string { return "heartbeat-producer" }

// Start ticks until ctx is cancelled or Stop is called.
func (h *Heartbeat) Start(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("Heartbeat producer started", "interval", h.interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.stopped:
			return nil
		case <-ticker.C:
			res := h.bus.Publish(ctx, bus.TopicHeartbeat, bus.HeartbeatEvent{At: time.Now().UTC()})
			h.mu.Lock()
			if res.IsErr() {
				h.lastErr = res.Error()
				h.logger.Error("Heartbeat publish failed", "error", res.Error().Message)
			} else {
				h.lastErr = nil
				h.logger.Debug("Heartbeat published")
			}
			h.mu.Unlock()
		}
	}
}

// Stop implements lifecycle.Service.
func (h *Heartbeat) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stopped) })
	return nil
}

// Health reports the outcome of the last tick.
func (h *Heartbeat) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastErr != nil {
		return fmt.Errorf("last heartbeat failed: %w", h.lastErr)
	}
	return nil
}
