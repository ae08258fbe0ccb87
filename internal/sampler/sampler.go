// Package sampler turns raw platform memory readings into Snapshots.
//
// The Adapter wraps a RawSampler and a Clock. It never returns an error:
// a failed reading becomes a zero Snapshot and a failed clock becomes a
// zero timestamp, so the heartbeat that drives it keeps running.
package sampler

import (
	"sync"
	"time"

	"github.com/headroom/headroom/internal/logging"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/snapshot"
)

// RawSampler reads the current footprint and the headroom left before the
// platform terminates the process. It is called synchronously and should
// return in microseconds.
type RawSampler interface {
	Sample() (usedBytes, remainingBytes uint64, err error)
}

// FuncSampler adapts a plain function to RawSampler.
type FuncSampler func() (usedBytes, remainingBytes uint64, err error)

func (f FuncSampler) Sample() (uint64, uint64, error) { return f() }

// Clock yields non-decreasing milliseconds since an arbitrary epoch.
type Clock interface {
	NowMs() (uint64, error)
}

// MonotonicClock measures milliseconds since it was created using the
// runtime's monotonic clock reading.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) NowMs() (uint64, error) {
	d := time.Since(c.start)
	if d < 0 {
		return 0, nil
	}
	return uint64(d.Milliseconds()), nil
}

const failureLogInterval = 10 * time.Second

// Adapter builds Snapshots from a RawSampler. Safe for concurrent use.
type Adapter struct {
	raw       RawSampler
	clock     Clock
	health    *health
	onFailure func(error)

	logMu       sync.Mutex
	lastFailLog time.Time
	suppressed  int
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithFailureThreshold sets how many consecutive failures mark the sampler failed.
func WithFailureThreshold(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.health.threshold = n
		}
	}
}

// WithFailureHook registers fn to be called on every failed raw sample.
func WithFailureHook(fn func(error)) AdapterOption {
	return func(a *Adapter) { a.onFailure = fn }
}

// NewAdapter wraps raw and clock. A nil clock uses a new MonotonicClock.
func NewAdapter(raw RawSampler, clock Clock, opts ...AdapterOption) *Adapter {
	if clock == nil {
		clock = NewMonotonicClock()
	}
	a := &Adapter{
		raw:    raw,
		clock:  clock,
		health: newHealth(defaultFailureThreshold),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sample takes one raw reading and combines it with pressureHint.
func (a *Adapter) Sample(pressureHint severity.Level) snapshot.Snapshot {
	used, remaining, ok := a.read()
	if !ok {
		used, remaining = 0, 0
	}
	return snapshot.New(used, remaining, pressureHint, a.now())
}

// CanAllocate reports whether bytes fits in the headroom of a fresh reading.
// It does not consult any cached or debounced snapshot.
func (a *Adapter) CanAllocate(bytes uint64) bool {
	_, remaining, ok := a.read()
	if !ok {
		return false
	}
	return bytes < remaining
}

// Health reports the sampler's recent failure history.
func (a *Adapter) Health() HealthReport {
	return a.health.report()
}

// HealthChanged returns the current report and whether its status differs
// from the last time HealthChanged reported a change.
func (a *Adapter) HealthChanged() (HealthReport, bool) {
	return a.health.reportAndMark()
}

func (a *Adapter) read() (uint64, uint64, bool) {
	used, remaining, err := a.raw.Sample()
	if err != nil {
		a.health.recordFailure(err)
		a.logFailure(err)
		if a.onFailure != nil {
			a.onFailure(err)
		}
		return 0, 0, false
	}
	a.health.recordSuccess()
	return used, remaining, true
}

func (a *Adapter) now() uint64 {
	ms, err := a.clock.NowMs()
	if err != nil {
		return 0
	}
	return ms
}

// logFailure logs at most once per failureLogInterval and reports how many
// failures were suppressed in between.
func (a *Adapter) logFailure(err error) {
	a.logMu.Lock()
	defer a.logMu.Unlock()
	now := time.Now()
	if !a.lastFailLog.IsZero() && now.Sub(a.lastFailLog) < failureLogInterval {
		a.suppressed++
		return
	}
	if a.suppressed > 0 {
		logging.Warn("[sampler] raw sample failed: %v (%d similar failures suppressed)", err, a.suppressed)
	} else {
		logging.Warn("[sampler] raw sample failed: %v", err)
	}
	a.suppressed = 0
	a.lastFailLog = now
}
