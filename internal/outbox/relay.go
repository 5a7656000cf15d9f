package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/metrics"
)

// RelayConfig tunes the republish loop.
type RelayConfig struct {
	// Interval between sweeps.
	Interval time.Duration

	// GracePeriod a PENDING entry must exceed before it is considered
	// stuck. Keeps the relay off entries the committing process is
	// still publishing itself.
	GracePeriod time.Duration

	// BatchSize caps entries republished per sweep.
	BatchSize int
}

// DefaultRelayConfig returns relay settings suitable for production.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Interval:    15 * time.Second,
		GracePeriod: 30 * time.Second,
		BatchSize:   100,
	}
}

// Relay republishes outbox entries whose direct publish was never
// confirmed. Downstream idempotency makes the resulting duplicates
// harmless, so the relay favors republishing over losing events.
type Relay struct {
	repo   Repository
	bus    bus.Bus
	config RelayConfig
	logger *slog.Logger

	mu       sync.Mutex
	lastErr  error
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewRelay creates a relay over the given repository and bus.
func NewRelay(repo Repository, b bus.Bus, config RelayConfig) *Relay {
	return &Relay{
		repo:    repo,
		bus:     b,
		config:  config,
		logger:  slog.Default().With("component", "outbox-relay"),
		stopped: make(chan struct{}),
	}
}

// Name implements lifecycle.Service.
func (r *Relay) Name() string { return "outbox-relay" }

// Start runs the sweep loop until ctx is cancelled or Stop is called.
func (r *Relay) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Info("Outbox relay started",
		"interval", r.config.Interval,
		"grace_period", r.config.GracePeriod)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stopped:
			return nil
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("Outbox sweep failed", "error", err)
			}
		}
	}
}

// Stop implements lifecycle.Service.
func (r *Relay) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopped) })
	return nil
}

// Health reports the outcome of the last sweep.
func (r *Relay) Health() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastErr != nil {
		return fmt.Errorf("last sweep failed: %w", r.lastErr)
	}
	return nil
}

// Sweep republishes one batch of stuck entries and refreshes the
// pending backlog gauge.
func (r *Relay) Sweep(ctx context.Context) error {
	err := r.sweep(ctx)
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	return err
}

func (r *Relay) sweep(ctx context.Context) error {
	entries, err := r.repo.FetchUnsent(ctx, r.config.GracePeriod, r.config.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch stuck entries: %w", err)
	}

	var sent []string
	for _, entry := range entries {
		if res := r.bus.PublishEnvelope(ctx, entry.Envelope()); res.IsErr() {
			r.logger.Warn("Republish failed",
				"entry_id", entry.ID,
				"topic", entry.Topic,
				"attempts", entry.Attempts,
				"error", res.Error())
			continue
		}
		metrics.OutboxReplayed.Inc()
		sent = append(sent, entry.ID)
	}

	if len(sent) > 0 {
		r.logger.Info("Republished stuck outbox entries", "count", len(sent))
		if err := r.repo.MarkSent(ctx, sent...); err != nil {
			return fmt.Errorf("mark republished entries sent: %w", err)
		}
	}

	pending, err := r.repo.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending entries: %w", err)
	}
	metrics.OutboxPending.Set(float64(pending))
	return nil
}

// ConfirmPublished marks entries SENT after a successful direct
// publish. Called by the transaction-side publisher right after
// commit; failures are logged only, the relay will retry them.
func ConfirmPublished(ctx context.Context, repo Repository, ids ...string) {
	if len(ids) == 0 {
		return
	}
	if err := repo.MarkSent(ctx, ids...); err != nil {
		slog.Warn("Failed to confirm outbox publish, relay will retry",
			"count", len(ids), "error", err)
	}
}
