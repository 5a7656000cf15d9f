// Package config loads process configuration from environment
// variables with sensible defaults, optionally overridden by a TOML
// file. Both binaries share one Config; each reads the sections it
// needs.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the bot and worker processes.
type Config struct {
	// HTTP configures the ops server (health, metrics).
	HTTP HTTPConfig

	// MongoDB configures the persistence backend.
	MongoDB MongoDBConfig

	// Bus configures the event bus backend.
	Bus BusConfig

	// AI configures the generation provider.
	AI AIConfig

	// Bot configures the surface process.
	Bot BotConfig

	// HeartbeatInterval is the worker's tick period.
	HeartbeatInterval time.Duration

	// Relay configures the outbox relay.
	Relay RelayConfig

	// DataDir is the directory for embedded services.
	DataDir string

	// DevMode loosens logging and swaps external adapters for fakes.
	DevMode bool
}

// HTTPConfig holds ops HTTP server configuration.
type HTTPConfig struct {
	Port        int
	CORSOrigins []string
}

// MongoDBConfig holds MongoDB connection configuration.
type MongoDBConfig struct {
	URI      string
	Database string
}

// BusConfig holds event bus configuration.
type BusConfig struct {
	// Type is "embedded", "nats", "redis" or "memory".
	Type string

	NATS  NATSConfig
	Redis RedisConfig
}

// NATSConfig holds NATS backend configuration.
type NATSConfig struct {
	URL        string
	StreamName string
	DataDir    string
	MaxAge     time.Duration
	AckWait    time.Duration
	MaxDeliver int
}

// RedisConfig holds Redis backend configuration.
type RedisConfig struct {
	Addr string
	DB   int
}

// AIConfig holds generation provider configuration.
type AIConfig struct {
	// Provider is "gemini" or "fake".
	Provider          string
	APIKey            string
	Model             string
	RequestsPerMinute int
}

// BotConfig holds surface process configuration.
type BotConfig struct {
	// HomeChannelID receives spontaneous dialog and feed
	// announcements.
	HomeChannelID string

	// DiscordToken authenticates message delivery. Empty falls back
	// to log delivery.
	DiscordToken string
}

// RelayConfig holds outbox relay configuration.
type RelayConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
	BatchSize   int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Port:        getEnvInt("HTTP_PORT", 8080),
			CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:4200"}),
		},

		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0&directConnection=true"),
			Database: getEnv("MONGODB_DATABASE", "botmind"),
		},

		Bus: BusConfig{
			Type: getEnv("BUS_TYPE", "embedded"),
			NATS: NATSConfig{
				URL:        getEnv("NATS_URL", "nats://localhost:4222"),
				StreamName: getEnv("NATS_STREAM", "BOTMIND"),
				DataDir:    getEnv("NATS_DATA_DIR", "./data/nats"),
				MaxAge:     getEnvDuration("NATS_MAX_AGE", 24*time.Hour),
				AckWait:    getEnvDuration("NATS_ACK_WAIT", 2*time.Minute),
				MaxDeliver: getEnvInt("NATS_MAX_DELIVER", 5),
			},
			Redis: RedisConfig{
				Addr: getEnv("REDIS_ADDR", "localhost:6379"),
				DB:   getEnvInt("REDIS_DB", 0),
			},
		},

		AI: AIConfig{
			Provider:          getEnv("AI_PROVIDER", "gemini"),
			APIKey:            getEnv("AI_API_KEY", ""),
			Model:             getEnv("AI_MODEL", "gemini-2.0-flash"),
			RequestsPerMinute: getEnvInt("AI_REQUESTS_PER_MINUTE", 60),
		},

		Bot: BotConfig{
			HomeChannelID: getEnv("BOT_HOME_CHANNEL_ID", ""),
			DiscordToken:  getEnv("BOT_DISCORD_TOKEN", ""),
		},

		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", time.Minute),

		Relay: RelayConfig{
			Interval:    getEnvDuration("OUTBOX_RELAY_INTERVAL", 15*time.Second),
			GracePeriod: getEnvDuration("OUTBOX_RELAY_GRACE", 30*time.Second),
			BatchSize:   getEnvInt("OUTBOX_RELAY_BATCH", 100),
		},

		DataDir: getEnv("DATA_DIR", "./data"),
		DevMode: getEnvBool("BOTMIND_DEV", false),
	}

	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return defaultValue
}
