package monitor

import (
	"fmt"
	"sync"

	"github.com/headroom/headroom/internal/config"
	"github.com/headroom/headroom/internal/logging"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
)

var (
	defaultMu sync.Mutex
	defaultM  *Monitor
)

// DefaultOptions watches the current process with the platform's default
// pressure source and limit discovery.
func DefaultOptions() Options {
	opts, err := OptionsFromConfig(config.Default())
	if err != nil {
		logging.Warn("[monitor] default pressure source unavailable: %v", err)
		opts.Pressure = sampler.NewStaticPressure(severity.Normal)
	}
	return opts
}

// OptionsFromConfig builds Options for the process and pressure source
// described by cfg. The returned pressure source is already running.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	limits := sampler.NewLimitResolver(sampler.LimitOptions{
		Explicit:      cfg.Limit.LimitBytes,
		CgroupRoot:    cfg.Limit.CgroupRoot,
		ProcRoot:      cfg.Monitor.ProcRoot,
		UseGoMemLimit: cfg.Limit.UseGoMemLimit,
	})
	opts := Options{
		Sampler:          sampler.NewProcessSampler(cfg.Monitor.PID, limits),
		Clock:            sampler.NewMonotonicClock(),
		Interval:         cfg.Monitor.HeartbeatInterval,
		FailureThreshold: cfg.Monitor.FailureThreshold,
	}

	p := cfg.Pressure
	src, err := sampler.NewPressureSource(sampler.PressureOptions{
		Kind:     p.Source,
		Interval: p.PollInterval,
		ProcRoot: cfg.Monitor.ProcRoot,
		PSI:      sampler.PSIThresholds{Warning: p.WarningAvg10, Critical: p.CriticalAvg10},
		System:   sampler.SystemThresholds{Warning: p.WarningPercent, Critical: p.CriticalPercent},
	})
	if err != nil {
		return opts, fmt.Errorf("pressure source: %w", err)
	}
	opts.Pressure = src
	return opts, nil
}

// Default returns the process-wide Monitor, building it from
// DefaultOptions on first use.
func Default() *Monitor {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultM == nil {
		defaultM = New(DefaultOptions())
	}
	return defaultM
}

// SetDefault installs m as the process-wide Monitor. A previously installed
// instance is closed.
func SetDefault(m *Monitor) {
	defaultMu.Lock()
	prev := defaultM
	defaultM = m
	defaultMu.Unlock()
	if prev != nil && prev != m {
		prev.Close()
	}
}

// resetDefault closes and forgets the process-wide Monitor.
func resetDefault() {
	SetDefault(nil)
}
