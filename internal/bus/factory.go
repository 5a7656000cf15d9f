package bus

import (
	"fmt"
	"time"
)

// BackendType selects the bus implementation.
type BackendType string

const (
	// BackendEmbedded runs an in-process NATS server with JetStream.
	// Durable; suitable for dev and single-box deployments.
	BackendEmbedded BackendType = "embedded"

	// BackendNATS connects to an external NATS server with JetStream.
	// Durable; required for any topic whose loss would strand state.
	BackendNATS BackendType = "nats"

	// BackendRedis fans out over Redis Pub/Sub to currently connected
	// subscribers only. Best effort; a subscriber offline at publish
	// time misses the event.
	BackendRedis BackendType = "redis"

	// BackendMemory is an in-process broadcast used by tests.
	BackendMemory BackendType = "memory"
)

// Config holds bus configuration for one process.
type Config struct {
	// Type is the backend: "embedded", "nats", "redis" or "memory".
	Type string

	// Group names the subscriber group. Durable backends keep one read
	// cursor per group per topic, so two processes with different
	// groups each receive every event.
	Group string

	NATS  NATSConfig
	Redis RedisConfig
}

// NATSConfig holds NATS-specific settings.
type NATSConfig struct {
	// URL is the server address, e.g. "nats://localhost:4222".
	URL string

	// StreamName is the JetStream stream holding all topics.
	StreamName string

	// DataDir is the JetStream store directory for the embedded server.
	DataDir string

	// MaxAge bounds event retention in the stream.
	MaxAge time.Duration

	// AckWait is the redelivery deadline for unacknowledged events.
	AckWait time.Duration

	// MaxDeliver caps delivery attempts per event.
	MaxDeliver int
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Addr is the server address, e.g. "localhost:6379".
	Addr string

	// DB is the logical database number.
	DB int
}

// DefaultConfig returns the embedded backend with defaults suitable
// for local development.
func DefaultConfig(group string) Config {
	return Config{
		Type:  string(BackendEmbedded),
		Group: group,
		NATS: NATSConfig{
			URL:        "nats://localhost:4222",
			StreamName: "BOTMIND",
			DataDir:    "./data/nats",
			MaxAge:     24 * time.Hour,
			AckWait:    2 * time.Minute,
			MaxDeliver: 5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// New creates the configured backend. The returned Bus must be started
// after all subscriptions are registered.
func New(cfg Config) (Bus, error) {
	switch BackendType(cfg.Type) {
	case BackendEmbedded:
		return NewEmbeddedNATSBus(cfg)
	case BackendNATS:
		return NewNATSBus(cfg)
	case BackendRedis:
		return NewRedisBus(cfg)
	case BackendMemory:
		return NewMemoryBus(), nil
	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.Type)
	}
}
