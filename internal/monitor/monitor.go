// Package monitor wires the sampler, snapshot store, notifier and scheduler
// into the memory Monitor.
//
// Most programs use the process-wide instance returned by Default, which is
// built on first access and runs until the process exits. Tests and
// embedders that need isolation construct their own with New and Close it
// when done.
package monitor

import (
	"sync"
	"time"

	"github.com/headroom/headroom/internal/logging"
	"github.com/headroom/headroom/internal/notify"
	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/snapshot"
)

// Options configures a Monitor. Zero fields take the defaults from
// DefaultOptions, except Sampler and Pressure which must be set when the
// Options are built by hand.
type Options struct {
	Sampler  sampler.RawSampler
	Pressure sampler.PressureSource
	Clock    sampler.Clock
	// Interval is both the heartbeat period and the minimum spacing
	// between accepted changes.
	Interval         time.Duration
	FailureThreshold int
	Observer         Observer
}

// Monitor tracks one process's memory severity.
type Monitor struct {
	adapter   *sampler.Adapter
	store     *snapshot.Store
	notifier  *notify.Notifier
	pressure  sampler.PressureSource
	scheduler *Scheduler
	observer  Observer

	closeOnce sync.Once
}

// New builds a Monitor, takes its first sample synchronously and starts the
// scheduler. The Monitor owns opts.Pressure and closes it on Close.
func New(opts Options) *Monitor {
	m := newMonitor(opts)
	m.scheduler.Start()
	return m
}

// newMonitor builds and primes a Monitor without starting the scheduler.
func newMonitor(opts Options) *Monitor {
	opts = normalize(opts)

	m := &Monitor{
		store:    snapshot.NewStore(opts.Interval),
		notifier: notify.New(),
		pressure: opts.Pressure,
		observer: opts.Observer,
	}
	m.adapter = sampler.NewAdapter(opts.Sampler, opts.Clock,
		sampler.WithFailureThreshold(opts.FailureThreshold),
		sampler.WithFailureHook(m.observer.ObserveSampleFailure),
	)
	m.scheduler = NewScheduler(opts.Interval, opts.Pressure, m.step)

	m.step(TriggerStart, opts.Pressure.Current())
	return m
}

func normalize(opts Options) Options {
	if opts.Interval <= 0 {
		opts.Interval = DefaultHeartbeat
	}
	if opts.Clock == nil {
		opts.Clock = sampler.NewMonotonicClock()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Sampler == nil {
		opts.Sampler = sampler.NewProcessSampler(0, nil)
	}
	if opts.Pressure == nil {
		opts.Pressure = sampler.NewStaticPressure(severity.Normal)
	}
	return opts
}

// step is the single sampling action: sample, submit, publish on accept.
func (m *Monitor) step(trigger Trigger, pressure severity.Level) {
	candidate := m.adapter.Sample(pressure)
	m.observer.ObserveSample(trigger, candidate)

	t, outcome := m.store.TryAccept(candidate)
	m.observer.ObserveOutcome(outcome, m.store.Read(), t)

	switch outcome {
	case snapshot.Accepted:
		logging.Info("[monitor] %s: state %s -> %s, pressure %s -> %s (%s used of %s)",
			trigger, t.Old.State, t.New.State, t.Old.Pressure, t.New.Pressure,
			sampler.FormatBytes(t.New.UsedBytes), sampler.FormatBytes(t.New.LimitBytes))
		m.notifier.Publish(t)
	case snapshot.Debounced:
		logging.Debug("[monitor] %s: debounced %s/%s", trigger, candidate.State, candidate.Pressure)
	}

	if r, changed := m.adapter.HealthChanged(); changed {
		if r.Status == sampler.StatusHealthy {
			logging.Info("[monitor] sampler recovered")
		} else {
			logging.Warn("[monitor] sampler %s after %d consecutive failures: %s", r.Status, r.ConsecutiveFailures, r.LastError)
		}
	}
}

// CurrentSnapshot returns a copy of the last accepted snapshot.
func (m *Monitor) CurrentSnapshot() snapshot.Snapshot { return m.store.Read() }

// CurrentState returns the accepted severity state.
func (m *Monitor) CurrentState() severity.Level { return m.store.Read().State }

// CurrentPressure returns the accepted pressure level.
func (m *Monitor) CurrentPressure() severity.Level { return m.store.Read().Pressure }

// CanAllocate reports whether bytes fits in the headroom measured right now,
// independent of the last accepted snapshot.
func (m *Monitor) CanAllocate(bytes uint64) bool { return m.adapter.CanAllocate(bytes) }

// Subscribe registers h for accepted transitions. Handlers run on the
// notifier's goroutine, one at a time, in acceptance order.
func (m *Monitor) Subscribe(h notify.Handler) notify.Subscription { return m.notifier.Subscribe(h) }

func (m *Monitor) Unsubscribe(s notify.Subscription) { m.notifier.Unsubscribe(s) }

// Health reports raw sampler reliability.
func (m *Monitor) Health() sampler.HealthReport { return m.adapter.Health() }

// Stats returns the store's outcome counters.
func (m *Monitor) Stats() snapshot.Stats { return m.store.Stats() }

// Close stops sampling, then delivery, then the pressure source. No
// handler or scheduled action runs after Close returns.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		m.scheduler.Stop()
		m.notifier.Close()
		if err := m.pressure.Close(); err != nil {
			logging.Warn("[monitor] closing pressure source: %v", err)
		}
	})
}
