package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/headroom/headroom/internal/severity"
)

const mb = 1 << 20

func snap(usedMB, limitMB uint64, pressure severity.Level, ts uint64) Snapshot {
	return New(usedMB*mb, (limitMB-usedMB)*mb, pressure, ts)
}

func TestNewDerivesLimitAndState(t *testing.T) {
	s := New(300, 700, severity.Normal, 10)
	if s.LimitBytes != 1000 {
		t.Errorf("LimitBytes = %d, want 1000", s.LimitBytes)
	}
	if s.State != severity.Warning {
		t.Errorf("State = %v, want warning", s.State)
	}
	if s.LimitBytes != s.UsedBytes+s.RemainingBytes {
		t.Error("used + remaining != limit")
	}
}

func TestNewClampsPressure(t *testing.T) {
	if got := New(0, 10, severity.Terminal, 0).Pressure; got != severity.Critical {
		t.Errorf("Pressure = %v, want critical", got)
	}
	if got := New(0, 10, severity.Urgent, 0).Pressure; got != severity.Warning {
		t.Errorf("Pressure = %v, want warning", got)
	}
}

func TestNewZeroSnapshot(t *testing.T) {
	s := New(0, 0, severity.Normal, 0)
	if s.LimitBytes != 0 || s.State != severity.Normal {
		t.Errorf("zero snapshot = %v", s)
	}
	if s.Ratio() != 0 {
		t.Errorf("Ratio = %v, want 0", s.Ratio())
	}
}

func TestNewSaturatesLimit(t *testing.T) {
	s := New(^uint64(0), 10, severity.Normal, 0)
	if s.LimitBytes != ^uint64(0) {
		t.Errorf("LimitBytes = %d, want max", s.LimitBytes)
	}
	if s.State != severity.Terminal {
		t.Errorf("State = %v, want terminal", s.State)
	}
}

func TestFirstSampleAcceptedUnconditionally(t *testing.T) {
	st := NewStore(DefaultInterval)
	first := snap(600, 1000, severity.Normal, 0)

	tr, outcome := st.TryAccept(first)
	if outcome != Accepted {
		t.Fatalf("outcome = %v, want accepted", outcome)
	}
	if tr.Old.State != severity.Normal || tr.Old.Pressure != severity.Normal {
		t.Errorf("baseline = %v, want normal/normal", tr.Old)
	}
	if tr.Changes != severity.StateChanged {
		t.Errorf("changes = %v, want state", tr.Changes)
	}
	if st.Read() != first {
		t.Errorf("Read() = %v, want %v", st.Read(), first)
	}
}

func TestFirstSampleMatchingBaselineIsStoredSilently(t *testing.T) {
	st := NewStore(DefaultInterval)
	first := snap(100, 1000, severity.Normal, 42)

	_, outcome := st.TryAccept(first)
	if outcome != Primed {
		t.Fatalf("outcome = %v, want primed", outcome)
	}
	if outcome.Accepted() {
		t.Error("primed should not require a notification")
	}
	if !st.Primed() {
		t.Error("store should be primed")
	}
	if got := st.Read(); got.TimestampMs != 42 || got.UsedBytes != first.UsedBytes {
		t.Errorf("Read() = %v, want %v", got, first)
	}
}

func TestUnchangedCandidatesAreDiscarded(t *testing.T) {
	st := NewStore(DefaultInterval)
	st.TryAccept(snap(100, 1000, severity.Normal, 0))

	// Same state and pressure, everything else different.
	for i, c := range []Snapshot{
		snap(120, 1000, severity.Normal, 1000),
		snap(10, 2000, severity.Normal, 5000),
	} {
		if _, outcome := st.TryAccept(c); outcome != Unchanged {
			t.Errorf("candidate %d outcome = %v, want unchanged", i, outcome)
		}
	}

	if got := st.Read(); got.UsedBytes != 100*mb {
		t.Errorf("unchanged candidate replaced current: %v", got)
	}
	if stats := st.Stats(); stats.Unchanged != 2 || stats.Accepted != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDebounceKeepsFirstChange(t *testing.T) {
	st := NewStore(500 * time.Millisecond)
	st.TryAccept(snap(100, 1000, severity.Normal, 0))

	tr, outcome := st.TryAccept(snap(300, 1000, severity.Normal, 600))
	if outcome != Accepted || tr.New.State != severity.Warning {
		t.Fatalf("first change: outcome=%v new=%v", outcome, tr.New)
	}

	// Differs, but only 50ms after the accepted change.
	if _, outcome := st.TryAccept(snap(960, 1000, severity.Normal, 650)); outcome != Debounced {
		t.Fatalf("outcome = %v, want debounced", outcome)
	}
	// Still inside the window measured from the accepted change, not from
	// the rejected sample.
	if _, outcome := st.TryAccept(snap(960, 1000, severity.Normal, 1099)); outcome != Debounced {
		t.Fatalf("outcome = %v, want debounced", outcome)
	}
	if got := st.Read().State; got != severity.Warning {
		t.Errorf("state after debounce = %v, want warning", got)
	}

	tr, outcome = st.TryAccept(snap(960, 1000, severity.Normal, 1100))
	if outcome != Accepted {
		t.Fatalf("outcome = %v, want accepted at exactly one interval", outcome)
	}
	if tr.Old.State != severity.Warning || tr.New.State != severity.Terminal {
		t.Errorf("transition = %v -> %v", tr.Old.State, tr.New.State)
	}
}

func TestDebounceAppliesToPressure(t *testing.T) {
	st := NewStore(DefaultInterval)
	st.TryAccept(snap(100, 1000, severity.Normal, 1000))

	if _, outcome := st.TryAccept(snap(100, 1000, severity.Critical, 1200)); outcome != Debounced {
		t.Fatalf("outcome = %v, want debounced", outcome)
	}
	tr, outcome := st.TryAccept(snap(100, 1000, severity.Critical, 1500))
	if outcome != Accepted || tr.Changes != severity.PressureChanged {
		t.Fatalf("outcome=%v changes=%v", outcome, tr.Changes)
	}
}

func TestTimestampReorderingIsTreatedAsNoElapsedTime(t *testing.T) {
	st := NewStore(DefaultInterval)
	st.TryAccept(snap(100, 1000, severity.Normal, 10_000))

	if _, outcome := st.TryAccept(snap(950, 1000, severity.Normal, 0)); outcome != Debounced {
		t.Errorf("older candidate outcome = %v, want debounced", outcome)
	}
	if elapsedMs(10, 3) != 0 {
		t.Error("elapsedMs should saturate at zero")
	}
}

// A clock that keeps failing stamps every sample 0. The first sample still
// primes the store, but no later change ever clears the debounce window, so
// the stored level stays frozen until the clock recovers.
func TestFailedClockFreezesStateAfterFirstSample(t *testing.T) {
	st := NewStore(DefaultInterval)
	if _, outcome := st.TryAccept(snap(100, 1000, severity.Normal, 0)); outcome != Primed {
		t.Fatalf("first sample outcome = %v, want primed", outcome)
	}

	for _, used := range []uint64{300, 600, 960, 100, 960} {
		if _, outcome := st.TryAccept(snap(used, 1000, severity.Critical, 0)); outcome != Debounced {
			t.Errorf("used=%d outcome = %v, want debounced", used, outcome)
		}
	}
	if got := st.Read(); got.State != severity.Normal || got.Pressure != severity.Normal {
		t.Errorf("stored = %v/%v, want Normal/Normal", got.State, got.Pressure)
	}
	if got := st.Stats().Debounced; got != 5 {
		t.Errorf("debounced = %d, want 5", got)
	}

	// Once timestamps advance again the next change goes through.
	if _, outcome := st.TryAccept(snap(960, 1000, severity.Critical, uint64(DefaultInterval.Milliseconds()))); outcome != Accepted {
		t.Errorf("after recovery outcome = %v, want accepted", outcome)
	}
}

func TestEndToEndScenario(t *testing.T) {
	st := NewStore(DefaultInterval)
	const t0 = 5_000

	st.TryAccept(snap(100, 1000, severity.Normal, t0))
	if st.Read().State != severity.Normal {
		t.Fatalf("initial state = %v", st.Read().State)
	}

	tr, outcome := st.TryAccept(snap(300, 1000, severity.Normal, t0+600))
	if outcome != Accepted || tr.Changes != severity.StateChanged || tr.New.State != severity.Warning {
		t.Fatalf("step 2: outcome=%v changes=%v state=%v", outcome, tr.Changes, tr.New.State)
	}

	if _, outcome := st.TryAccept(snap(960, 1000, severity.Normal, t0+650)); outcome != Debounced {
		t.Fatalf("step 3: outcome=%v, want debounced", outcome)
	}

	tr, outcome = st.TryAccept(snap(960, 1000, severity.Normal, t0+1200))
	if outcome != Accepted || tr.New.State != severity.Terminal {
		t.Fatalf("step 4: outcome=%v state=%v", outcome, tr.New.State)
	}
}

func TestConcurrentReadsNeverTear(t *testing.T) {
	st := NewStore(time.Millisecond)
	st.TryAccept(New(0, 1000, severity.Normal, 0))

	// Every written snapshot encodes its timestamp in UsedBytes so a reader
	// can tell whether all fields came from the same write.
	const writes = 2000
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := st.Read()
				if s.LimitBytes != s.UsedBytes+s.RemainingBytes {
					t.Errorf("torn limit: %v", s)
					return
				}
				if s.UsedBytes != s.TimestampMs%1000 {
					t.Errorf("torn snapshot: %v", s)
					return
				}
				if s.State != severity.Classify(s.UsedBytes, s.LimitBytes) {
					t.Errorf("state inconsistent: %v", s)
					return
				}
			}
		}()
	}

	for i := uint64(1); i <= writes; i++ {
		ts := i * 1000
		used := []uint64{100, 300, 600, 800, 950}[i%5]
		st.TryAccept(New(used, 1000-used, severity.Normal, ts+used))
	}
	close(stop)
	wg.Wait()
}
