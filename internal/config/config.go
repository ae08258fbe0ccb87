// Package config loads headroomd settings from a yaml file layered over
// defaults, then applies HEADROOM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Limit    LimitConfig    `yaml:"limit"`
	Pressure PressureConfig `yaml:"pressure"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

type MonitorConfig struct {
	// PID is the process to watch; 0 watches headroomd itself.
	PID               int           `yaml:"pid"`
	// ProcRoot is the proc mount used for PSI and for finding the
	// watched process's cgroup.
	ProcRoot          string        `yaml:"proc_root"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
	FailureThreshold  int           `yaml:"failure_threshold"`
}

type LimitConfig struct {
	LimitBytes    uint64 `yaml:"limit_bytes"`
	CgroupRoot    string `yaml:"cgroup_root"`
	UseGoMemLimit bool   `yaml:"use_gomemlimit"`
}

type PressureConfig struct {
	// Source is psi, system, static or none. Empty picks the platform default.
	Source          string        `yaml:"source"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	WarningAvg10    float64       `yaml:"warning_avg10"`
	CriticalAvg10   float64       `yaml:"critical_avg10"`
	WarningPercent  float64       `yaml:"warning_percent"`
	CriticalPercent float64       `yaml:"critical_percent"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8090,
			Host:           "127.0.0.1",
			MaxConnections: 64,
		},
		Monitor: MonitorConfig{
			ProcRoot:          "/proc",
			HeartbeatInterval: 500 * time.Millisecond,
			SnapshotInterval:  10 * time.Second,
			FailureThreshold:  3,
		},
		Limit: LimitConfig{
			CgroupRoot: "/sys/fs/cgroup",
		},
		Pressure: PressureConfig{
			PollInterval:    time.Second,
			WarningAvg10:    10,
			CriticalAvg10:   40,
			WarningPercent:  80,
			CriticalPercent: 95,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// allowMissing is set; the defaults are returned instead.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && allowMissing:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("HEADROOM_PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HEADROOM_PORT %q: %w", v, err)
		}
		c.Server.Port = n
	}
	if v, ok := lookup("HEADROOM_PID"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HEADROOM_PID %q: %w", v, err)
		}
		c.Monitor.PID = n
	}
	if v, ok := lookup("HEADROOM_AUTH_TOKEN"); ok {
		c.Server.AuthToken = v
	}
	return nil
}

// Validate rejects settings the monitor cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.Monitor.PID < 0 {
		return fmt.Errorf("%w: monitor.pid must not be negative", ErrInvalid)
	}
	if c.Monitor.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: monitor.heartbeat_interval must be positive", ErrInvalid)
	}
	if c.Monitor.SnapshotInterval <= 0 {
		return fmt.Errorf("%w: monitor.snapshot_interval must be positive", ErrInvalid)
	}
	if c.Monitor.FailureThreshold <= 0 {
		return fmt.Errorf("%w: monitor.failure_threshold must be positive", ErrInvalid)
	}
	if c.Pressure.PollInterval <= 0 {
		return fmt.Errorf("%w: pressure.poll_interval must be positive", ErrInvalid)
	}
	switch c.Pressure.Source {
	case "", "psi", "system", "static", "none":
	default:
		return fmt.Errorf("%w: unknown pressure.source %q", ErrInvalid, c.Pressure.Source)
	}
	if c.Pressure.WarningAvg10 >= c.Pressure.CriticalAvg10 {
		return fmt.Errorf("%w: pressure.warning_avg10 must be below critical_avg10", ErrInvalid)
	}
	if c.Pressure.WarningPercent >= c.Pressure.CriticalPercent {
		return fmt.Errorf("%w: pressure.warning_percent must be below critical_percent", ErrInvalid)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("%w: server.max_connections must not be negative", ErrInvalid)
	}
	return nil
}
