// Package metrics defines the Prometheus metrics shared by the bot and
// worker processes. Metrics are registered at init via promauto and
// exposed on each process's ops HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mediator metrics

	// DispatchTotal counts request dispatches by request type and outcome.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botmind",
			Subsystem: "mediator",
			Name:      "dispatch_total",
			Help:      "Total requests dispatched through the mediator",
		},
		[]string{"request", "outcome"}, // outcome: ok, err, unregistered, type_mismatch
	)

	// DispatchDuration tracks handler execution time per request type.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botmind",
			Subsystem: "mediator",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to handle a dispatched request",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"request"},
	)

	// Event bus metrics

	// BusPublished counts events published by topic and outcome.
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botmind",
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Total events published to the bus",
		},
		[]string{"topic", "outcome"}, // outcome: ok, err
	)

	// BusConsumed counts events delivered to subscribers by topic.
	BusConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botmind",
			Subsystem: "bus",
			Name:      "consumed_total",
			Help:      "Total events delivered to subscribers",
		},
		[]string{"topic", "outcome"}, // outcome: ok, err, duplicate
	)

	// Outbox metrics

	// OutboxPending tracks outbox entries not yet confirmed sent.
	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "botmind",
			Subsystem: "outbox",
			Name:      "pending",
			Help:      "Outbox entries awaiting publish confirmation",
		},
	)

	// OutboxReplayed counts entries republished by the relay.
	OutboxReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "botmind",
			Subsystem: "outbox",
			Name:      "replayed_total",
			Help:      "Outbox entries republished by the relay",
		},
	)

	// AI metrics

	// AIGenerations counts generation calls by outcome.
	AIGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botmind",
			Subsystem: "ai",
			Name:      "generations_total",
			Help:      "Total AI generation calls",
		},
		[]string{"outcome"}, // outcome: ok, err, rejected
	)
)
