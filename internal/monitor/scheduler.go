package monitor

import (
	"sync"
	"time"

	"github.com/headroom/headroom/internal/sampler"
	"github.com/headroom/headroom/internal/severity"
)

// Trigger names the stimulus that caused a sample.
type Trigger int

const (
	TriggerStart Trigger = iota
	TriggerTick
	TriggerPressure
)

var triggerNames = map[Trigger]string{
	TriggerStart:    "start",
	TriggerTick:     "tick",
	TriggerPressure: "pressure",
}

func (t Trigger) String() string {
	if s, ok := triggerNames[t]; ok {
		return s
	}
	return "unknown"
}

// DefaultHeartbeat is the periodic sampling interval.
const DefaultHeartbeat = 500 * time.Millisecond

// Action is what the scheduler runs for every stimulus.
type Action func(trigger Trigger, pressure severity.Level)

// Scheduler runs an Action on a fixed heartbeat and whenever the pressure
// source reports a transition. Both stimuli are handled on one goroutine so
// actions never overlap.
//
// The periodic timer and the pressure subscription can be stopped
// independently. Once a stop method returns, no action for that stimulus
// starts or is still running.
type Scheduler struct {
	interval time.Duration
	pressure sampler.PressureSource
	action   Action

	// fireMu is held while an action runs so stop methods can wait it out.
	fireMu          sync.Mutex
	timerStopped    bool
	pressureStopped bool

	timerStop    chan struct{}
	pressureStop chan struct{}
	timerOnce    sync.Once
	pressureOnce sync.Once

	startOnce sync.Once
	started   bool
	done      chan struct{}
}

// NewScheduler prepares a scheduler; call Start to begin. A non-positive
// interval uses DefaultHeartbeat.
func NewScheduler(interval time.Duration, pressure sampler.PressureSource, action Action) *Scheduler {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	return &Scheduler{
		interval:     interval,
		pressure:     pressure,
		action:       action,
		timerStop:    make(chan struct{}),
		pressureStop: make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the scheduling goroutine. The timer fires immediately and
// then every interval. A time.Ticker drops ticks a busy receiver misses,
// which coalesces the heartbeat under load.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.fireMu.Lock()
		s.started = true
		s.fireMu.Unlock()
		go s.run()
	})
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	tickC := ticker.C
	events := s.pressure.Events()
	timerStop := s.timerStop
	pressureStop := s.pressureStop

	s.fire(TriggerStart, s.pressure.Current())

	for tickC != nil || events != nil {
		select {
		case <-timerStop:
			ticker.Stop()
			tickC, timerStop = nil, nil
		case <-pressureStop:
			events, pressureStop = nil, nil
		case <-tickC:
			s.fire(TriggerTick, s.pressure.Current())
		case l, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.fire(TriggerPressure, l)
		}
	}
}

// fire runs the action unless its stimulus has been cancelled.
func (s *Scheduler) fire(trigger Trigger, pressure severity.Level) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	if trigger == TriggerPressure {
		if s.pressureStopped {
			return
		}
	} else if s.timerStopped {
		return
	}
	s.action(trigger, pressure)
}

// StopTimer cancels the periodic heartbeat.
func (s *Scheduler) StopTimer() {
	s.timerOnce.Do(func() {
		s.fireMu.Lock()
		s.timerStopped = true
		s.fireMu.Unlock()
		close(s.timerStop)
	})
}

// StopPressure cancels the pressure event subscription.
func (s *Scheduler) StopPressure() {
	s.pressureOnce.Do(func() {
		s.fireMu.Lock()
		s.pressureStopped = true
		s.fireMu.Unlock()
		close(s.pressureStop)
	})
}

// Stop cancels both stimuli and waits for the goroutine to exit.
func (s *Scheduler) Stop() {
	s.StopTimer()
	s.StopPressure()
	s.fireMu.Lock()
	started := s.started
	s.fireMu.Unlock()
	if started {
		<-s.done
	}
}
