package snapshot

import (
	"sync"
	"time"

	"github.com/headroom/headroom/internal/severity"
)

// DefaultInterval is the minimum spacing between two accepted changes.
const DefaultInterval = 500 * time.Millisecond

// Outcome describes what TryAccept did with a candidate.
type Outcome int

const (
	// Accepted means the candidate replaced the current snapshot and the
	// returned Transition should be published.
	Accepted Outcome = iota
	// Primed means the first candidate was stored but matched the
	// Normal/Normal baseline, so there is nothing to publish.
	Primed
	// Unchanged means state and pressure matched the current snapshot.
	Unchanged
	// Debounced means the candidate differed but arrived less than one
	// interval after the last accepted change.
	Debounced
)

var outcomeNames = map[Outcome]string{
	Accepted:  "accepted",
	Primed:    "primed",
	Unchanged: "unchanged",
	Debounced: "debounced",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Accepted reports whether a notification is due.
func (o Outcome) Accepted() bool { return o == Accepted }

// Stats are cumulative TryAccept outcome counts.
type Stats struct {
	Accepted  uint64 `json:"accepted"`
	Unchanged uint64 `json:"unchanged"`
	Debounced uint64 `json:"debounced"`
}

// Store holds the current Snapshot. TryAccept is the only mutation path and
// performs compare, debounce and swap under a single lock acquisition.
type Store struct {
	mu         sync.Mutex
	current    Snapshot
	primed     bool
	intervalMs uint64
	stats      Stats
}

// NewStore creates an unprimed store whose baseline is a zero Snapshot
// (Normal state, Normal pressure). A non-positive interval uses DefaultInterval.
func NewStore(interval time.Duration) *Store {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Store{intervalMs: uint64(interval.Milliseconds())}
}

// Read returns a copy of the current snapshot.
func (s *Store) Read() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// TryAccept decides whether candidate becomes the current snapshot.
//
// The first candidate is always stored. Afterwards a candidate is stored
// only when its state or pressure differs from the current snapshot and at
// least one interval has elapsed since the current snapshot was accepted.
// The debounce baseline is the last accepted change, not the last sample
// seen, so a burst of differing candidates keeps the first one.
func (s *Store) TryAccept(candidate Snapshot) (Transition, Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := severity.Diff(s.current.State, s.current.Pressure, candidate.State, candidate.Pressure)

	if !s.primed {
		s.primed = true
		old := s.current
		s.current = candidate
		if changes.Empty() {
			return Transition{}, Primed
		}
		s.stats.Accepted++
		return Transition{Old: old, New: candidate, Changes: changes}, Accepted
	}

	if changes.Empty() {
		s.stats.Unchanged++
		return Transition{}, Unchanged
	}

	if elapsedMs(s.current.TimestampMs, candidate.TimestampMs) < s.intervalMs {
		s.stats.Debounced++
		return Transition{}, Debounced
	}

	old := s.current
	s.current = candidate
	s.stats.Accepted++
	return Transition{Old: old, New: candidate, Changes: changes}, Accepted
}

// Primed reports whether the first candidate has been stored.
func (s *Store) Primed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primed
}

// Stats returns a copy of the outcome counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// elapsedMs is to-from, or 0 when the clock went backwards or failed.
func elapsedMs(from, to uint64) uint64 {
	if to < from {
		return 0
	}
	return to - from
}
