package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9191
  auth_token: secret
  allowed_origins:
    - http://dash.local
monitor:
  pid: 4242
  heartbeat_interval: 250ms
limit:
  limit_bytes: 1073741824
pressure:
  source: system
  warning_percent: 70
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath, false)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Server.AuthToken != "secret" {
		t.Errorf("Server.AuthToken = %q", cfg.Server.AuthToken)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://dash.local" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Monitor.PID != 4242 {
		t.Errorf("Monitor.PID = %d", cfg.Monitor.PID)
	}
	if cfg.Monitor.HeartbeatInterval != 250*time.Millisecond {
		t.Errorf("Monitor.HeartbeatInterval = %v", cfg.Monitor.HeartbeatInterval)
	}
	if cfg.Monitor.SnapshotInterval != 10*time.Second {
		t.Errorf("Monitor.SnapshotInterval = %v, want default", cfg.Monitor.SnapshotInterval)
	}
	if cfg.Limit.LimitBytes != 1<<30 {
		t.Errorf("Limit.LimitBytes = %d", cfg.Limit.LimitBytes)
	}
	if cfg.Pressure.Source != "system" || cfg.Pressure.WarningPercent != 70 || cfg.Pressure.CriticalPercent != 95 {
		t.Errorf("Pressure = %+v", cfg.Pressure)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(missing, true)
	if err != nil {
		t.Fatalf("Load(allowMissing) error: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("expected defaults, got port %d", cfg.Server.Port)
	}

	if _, err := Load(missing, false); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [port"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, false); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HEADROOM_PORT":       "7000",
		"HEADROOM_PID":        "99",
		"HEADROOM_AUTH_TOKEN": "tok",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 || cfg.Monitor.PID != 99 || cfg.Server.AuthToken != "tok" {
		t.Errorf("env not applied: %+v %+v", cfg.Server, cfg.Monitor)
	}

	env["HEADROOM_PORT"] = "eighty"
	if err := Default().applyEnv(lookup); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"NegativePort", func(c *Config) { c.Server.Port = -1 }},
		{"HugePort", func(c *Config) { c.Server.Port = 70000 }},
		{"NegativePID", func(c *Config) { c.Monitor.PID = -5 }},
		{"ZeroHeartbeat", func(c *Config) { c.Monitor.HeartbeatInterval = 0 }},
		{"ZeroSnapshot", func(c *Config) { c.Monitor.SnapshotInterval = 0 }},
		{"ZeroThreshold", func(c *Config) { c.Monitor.FailureThreshold = 0 }},
		{"ZeroPoll", func(c *Config) { c.Pressure.PollInterval = 0 }},
		{"UnknownSource", func(c *Config) { c.Pressure.Source = "vibes" }},
		{"InvertedPSI", func(c *Config) { c.Pressure.WarningAvg10 = 50 }},
		{"InvertedPercent", func(c *Config) { c.Pressure.CriticalPercent = 10 }},
		{"NegativeConnections", func(c *Config) { c.Server.MaxConnections = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}
