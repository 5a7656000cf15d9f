package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"go.botmind.dev/internal/metrics"
)

// ResilientConfig tunes the protective wrapper around a provider.
type ResilientConfig struct {
	// RequestsPerMinute throttles provider calls. Zero disables the
	// rate limiter.
	RequestsPerMinute int

	// BreakerMinRequests is the sample size before the breaker may
	// trip.
	BreakerMinRequests uint32

	// BreakerFailureRatio trips the breaker when the failure ratio
	// over the interval reaches it.
	BreakerFailureRatio float64

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
}

// DefaultResilientConfig returns wrapper settings suitable for
// production.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		RequestsPerMinute:   60,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
		BreakerTimeout:      30 * time.Second,
	}
}

// Resilient decorates a Generator with a rate limiter and a circuit
// breaker. An open circuit fails fast with ErrUnavailable instead of
// queueing work behind a dead provider.
type Resilient struct {
	inner   Generator
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewResilient wraps a generator.
func NewResilient(inner Generator, cfg ResilientConfig) *Resilient {
	r := &Resilient{inner: inner}

	if cfg.RequestsPerMinute > 0 {
		perSecond := float64(cfg.RequestsPerMinute) / 60.0
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), cfg.RequestsPerMinute)
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ai-generator",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return r
}

// Generate runs the wrapped provider behind the limiter and breaker.
func (r *Resilient) Generate(ctx context.Context, req Request) (string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			metrics.AIGenerations.WithLabelValues("rejected").Inc()
			return "", fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
		}
	}

	out, err := r.breaker.Execute(func() (any, error) {
		return r.inner.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.AIGenerations.WithLabelValues("rejected").Inc()
			return "", fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		metrics.AIGenerations.WithLabelValues("err").Inc()
		return "", err
	}

	metrics.AIGenerations.WithLabelValues("ok").Inc()
	return out.(string), nil
}

var _ Generator = (*Resilient)(nil)
