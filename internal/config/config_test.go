package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.MongoDB.Database != "botmind" {
		t.Errorf("expected default database botmind, got %s", cfg.MongoDB.Database)
	}
	if cfg.Bus.Type != "embedded" {
		t.Errorf("expected default bus type embedded, got %s", cfg.Bus.Type)
	}
	if cfg.AI.Provider != "gemini" {
		t.Errorf("expected default provider gemini, got %s", cfg.AI.Provider)
	}
	if cfg.HeartbeatInterval != time.Minute {
		t.Errorf("expected default heartbeat 1m, got %s", cfg.HeartbeatInterval)
	}
	if cfg.Relay.Interval != 15*time.Second || cfg.Relay.GracePeriod != 30*time.Second {
		t.Errorf("unexpected relay defaults %+v", cfg.Relay)
	}
	if cfg.DevMode {
		t.Error("expected dev mode off by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("BUS_TYPE", "redis")
	t.Setenv("AI_PROVIDER", "fake")
	t.Setenv("HEARTBEAT_INTERVAL", "30s")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("BOTMIND_DEV", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Bus.Type != "redis" {
		t.Errorf("expected redis bus, got %s", cfg.Bus.Type)
	}
	if cfg.AI.Provider != "fake" {
		t.Errorf("expected fake provider, got %s", cfg.AI.Provider)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("expected 30s heartbeat, got %s", cfg.HeartbeatInterval)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "http://b.test" {
		t.Errorf("unexpected CORS origins %v", cfg.HTTP.CORSOrigins)
	}
	if !cfg.DevMode {
		t.Error("expected dev mode on")
	}
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("HEARTBEAT_INTERVAL", "soonish")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected fallback port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HeartbeatInterval != time.Minute {
		t.Errorf("expected fallback heartbeat 1m, got %s", cfg.HeartbeatInterval)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botmind.toml")
	content := `
heartbeat_interval = "5m"
dev_mode = true

[http]
port = 7070

[bus]
type = "nats"

[bus.nats]
url = "nats://queue.internal:4222"

[ai]
provider = "fake"

[relay]
grace_period = "45s"
batch_size = 25
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("BOTMIND_CONFIG", path)
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := LoadWithFile()
	if err != nil {
		t.Fatalf("LoadWithFile failed: %v", err)
	}

	// File overrides win over environment.
	if cfg.HTTP.Port != 7070 {
		t.Errorf("expected file port 7070, got %d", cfg.HTTP.Port)
	}
	if cfg.Bus.Type != "nats" || cfg.Bus.NATS.URL != "nats://queue.internal:4222" {
		t.Errorf("unexpected bus config %+v", cfg.Bus)
	}
	if cfg.HeartbeatInterval != 5*time.Minute {
		t.Errorf("expected 5m heartbeat, got %s", cfg.HeartbeatInterval)
	}
	if cfg.Relay.GracePeriod != 45*time.Second || cfg.Relay.BatchSize != 25 {
		t.Errorf("unexpected relay config %+v", cfg.Relay)
	}
	// Untouched fields keep their defaults.
	if cfg.MongoDB.Database != "botmind" {
		t.Errorf("expected default database, got %s", cfg.MongoDB.Database)
	}
	if !cfg.DevMode {
		t.Error("expected dev mode from file")
	}
}

func TestLoadWithFileMissingFile(t *testing.T) {
	t.Setenv("BOTMIND_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := LoadWithFile(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadWithFileBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte(`heartbeat_interval = "whenever"`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("BOTMIND_CONFIG", path)
	if _, err := LoadWithFile(); err == nil {
		t.Error("expected error for unparseable duration")
	}
}
