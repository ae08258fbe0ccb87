package sampler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/headroom/headroom/internal/logging"
	"github.com/headroom/headroom/internal/severity"
)

// PressureSource reports coarse system memory pressure. Levels are always
// one of Normal, Warning or Critical. Events carries each transition and is
// closed by Close.
type PressureSource interface {
	Current() severity.Level
	Events() <-chan severity.Level
	Close() error
}

// PollingPressure turns a level reader into a PressureSource by polling it
// and emitting an event whenever the level moves.
type PollingPressure struct {
	name     string
	read     func() (severity.Level, error)
	interval time.Duration

	current atomic.Uint32
	events  chan severity.Level

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewPollingPressure starts polling read every interval. The first reading is
// taken synchronously so Current is meaningful immediately.
func NewPollingPressure(name string, interval time.Duration, read func() (severity.Level, error)) *PollingPressure {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &PollingPressure{
		name:     name,
		read:     read,
		interval: interval,
		events:   make(chan severity.Level, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if l, err := read(); err == nil {
		p.current.Store(uint32(l.AsPressure()))
	} else {
		logging.Warn("[pressure] %s: initial read failed: %v", name, err)
	}
	go p.loop(ctx)
	return p
}

func (p *PollingPressure) Name() string { return p.name }

func (p *PollingPressure) Current() severity.Level {
	return severity.Level(p.current.Load())
}

func (p *PollingPressure) Events() <-chan severity.Level { return p.events }

// Close stops polling and closes the event channel. Safe to call twice.
func (p *PollingPressure) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done
		close(p.events)
	})
	return nil
}

func (p *PollingPressure) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var failures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		l, err := p.read()
		if err != nil {
			failures++
			if failures == 1 {
				logging.Warn("[pressure] %s: read failed: %v", p.name, err)
			}
			continue
		}
		if failures > 0 {
			logging.Info("[pressure] %s: recovered after %d failed reads", p.name, failures)
			failures = 0
		}
		p.set(l)
	}
}

func (p *PollingPressure) set(l severity.Level) {
	l = l.AsPressure()
	prev := severity.Level(p.current.Swap(uint32(l)))
	if prev == l {
		return
	}
	logging.Debug("[pressure] %s: %s -> %s", p.name, prev, l)
	emitLatest(p.events, l)
}

// emitLatest sends l without blocking. If the consumer has not drained the
// previous event it is replaced, since only the newest level matters.
func emitLatest(ch chan severity.Level, l severity.Level) {
	for {
		select {
		case ch <- l:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// StaticPressure is a PressureSource whose level changes only through Set.
// Used when no platform signal is available and in tests.
type StaticPressure struct {
	mu      sync.Mutex
	current severity.Level
	events  chan severity.Level
	closed  bool
}

func NewStaticPressure(initial severity.Level) *StaticPressure {
	return &StaticPressure{
		current: initial.AsPressure(),
		events:  make(chan severity.Level, 1),
	}
}

func (s *StaticPressure) Current() severity.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *StaticPressure) Events() <-chan severity.Level { return s.events }

// Set changes the level and emits an event when it differs.
func (s *StaticPressure) Set(l severity.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l = l.AsPressure()
	if s.closed || l == s.current {
		return
	}
	s.current = l
	emitLatest(s.events, l)
}

func (s *StaticPressure) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
