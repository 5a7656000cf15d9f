package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// tomlConfig mirrors Config for file-based overrides. Durations are
// strings in the file ("30s", "2m").
type tomlConfig struct {
	HTTP struct {
		Port        int      `toml:"port"`
		CORSOrigins []string `toml:"cors_origins"`
	} `toml:"http"`

	MongoDB struct {
		URI      string `toml:"uri"`
		Database string `toml:"database"`
	} `toml:"mongodb"`

	Bus struct {
		Type string `toml:"type"`
		NATS struct {
			URL        string `toml:"url"`
			StreamName string `toml:"stream"`
			DataDir    string `toml:"data_dir"`
			MaxAge     string `toml:"max_age"`
			AckWait    string `toml:"ack_wait"`
			MaxDeliver int    `toml:"max_deliver"`
		} `toml:"nats"`
		Redis struct {
			Addr string `toml:"addr"`
			DB   int    `toml:"db"`
		} `toml:"redis"`
	} `toml:"bus"`

	AI struct {
		Provider          string `toml:"provider"`
		APIKey            string `toml:"api_key"`
		Model             string `toml:"model"`
		RequestsPerMinute int    `toml:"requests_per_minute"`
	} `toml:"ai"`

	Bot struct {
		HomeChannelID string `toml:"home_channel_id"`
		DiscordToken  string `toml:"discord_token"`
	} `toml:"bot"`

	HeartbeatInterval string `toml:"heartbeat_interval"`

	Relay struct {
		Interval    string `toml:"interval"`
		GracePeriod string `toml:"grace_period"`
		BatchSize   int    `toml:"batch_size"`
	} `toml:"relay"`

	DataDir string `toml:"data_dir"`
	DevMode bool   `toml:"dev_mode"`
}

// LoadWithFile loads configuration from the environment, then applies
// overrides from the TOML file named by BOTMIND_CONFIG when set.
func LoadWithFile() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	path := os.Getenv("BOTMIND_CONFIG")
	if path == "" {
		return cfg, nil
	}
	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if tc.HTTP.Port != 0 {
		cfg.HTTP.Port = tc.HTTP.Port
	}
	if len(tc.HTTP.CORSOrigins) > 0 {
		cfg.HTTP.CORSOrigins = tc.HTTP.CORSOrigins
	}
	if tc.MongoDB.URI != "" {
		cfg.MongoDB.URI = tc.MongoDB.URI
	}
	if tc.MongoDB.Database != "" {
		cfg.MongoDB.Database = tc.MongoDB.Database
	}
	if tc.Bus.Type != "" {
		cfg.Bus.Type = tc.Bus.Type
	}
	if tc.Bus.NATS.URL != "" {
		cfg.Bus.NATS.URL = tc.Bus.NATS.URL
	}
	if tc.Bus.NATS.StreamName != "" {
		cfg.Bus.NATS.StreamName = tc.Bus.NATS.StreamName
	}
	if tc.Bus.NATS.DataDir != "" {
		cfg.Bus.NATS.DataDir = tc.Bus.NATS.DataDir
	}
	if err := applyDuration(&cfg.Bus.NATS.MaxAge, tc.Bus.NATS.MaxAge, "bus.nats.max_age"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.Bus.NATS.AckWait, tc.Bus.NATS.AckWait, "bus.nats.ack_wait"); err != nil {
		return err
	}
	if tc.Bus.NATS.MaxDeliver != 0 {
		cfg.Bus.NATS.MaxDeliver = tc.Bus.NATS.MaxDeliver
	}
	if tc.Bus.Redis.Addr != "" {
		cfg.Bus.Redis.Addr = tc.Bus.Redis.Addr
	}
	if tc.Bus.Redis.DB != 0 {
		cfg.Bus.Redis.DB = tc.Bus.Redis.DB
	}
	if tc.AI.Provider != "" {
		cfg.AI.Provider = tc.AI.Provider
	}
	if tc.AI.APIKey != "" {
		cfg.AI.APIKey = tc.AI.APIKey
	}
	if tc.AI.Model != "" {
		cfg.AI.Model = tc.AI.Model
	}
	if tc.AI.RequestsPerMinute != 0 {
		cfg.AI.RequestsPerMinute = tc.AI.RequestsPerMinute
	}
	if tc.Bot.HomeChannelID != "" {
		cfg.Bot.HomeChannelID = tc.Bot.HomeChannelID
	}
	if tc.Bot.DiscordToken != "" {
		cfg.Bot.DiscordToken = tc.Bot.DiscordToken
	}
	if err := applyDuration(&cfg.HeartbeatInterval, tc.HeartbeatInterval, "heartbeat_interval"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.Relay.Interval, tc.Relay.Interval, "relay.interval"); err != nil {
		return err
	}
	if err := applyDuration(&cfg.Relay.GracePeriod, tc.Relay.GracePeriod, "relay.grace_period"); err != nil {
		return err
	}
	if tc.Relay.BatchSize != 0 {
		cfg.Relay.BatchSize = tc.Relay.BatchSize
	}
	if tc.DataDir != "" {
		cfg.DataDir = tc.DataDir
	}
	if tc.DevMode {
		cfg.DevMode = true
	}
	return nil
}

func applyDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	*dst = d
	return nil
}
