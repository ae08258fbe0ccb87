package metrics

import (
	"errors"
	"testing"

	"github.com/headroom/headroom/internal/monitor"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSampleSetsFootprint(t *testing.T) {
	o := NewMonitorObserver()
	before := testutil.ToFloat64(SamplesTotal.WithLabelValues("tick"))

	o.ObserveSample(monitor.TriggerTick, snapshot.New(300, 700, severity.Normal, 1))

	if got := testutil.ToFloat64(SamplesTotal.WithLabelValues("tick")); got != before+1 {
		t.Errorf("samples{tick} = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(UsedBytes); got != 300 {
		t.Errorf("used = %v, want 300", got)
	}
	if got := testutil.ToFloat64(LimitBytes); got != 1000 {
		t.Errorf("limit = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(UsageRatio); got != 0.3 {
		t.Errorf("ratio = %v, want 0.3", got)
	}
}

func TestObserveOutcomeCountsTransitions(t *testing.T) {
	o := NewMonitorObserver()
	old := snapshot.New(100, 900, severity.Normal, 1)
	next := snapshot.New(800, 200, severity.Critical, 700)
	tr := snapshot.Transition{Old: old, New: next, Changes: severity.StateChanged | severity.PressureChanged}

	state := testutil.ToFloat64(TransitionsTotal.WithLabelValues("state"))
	pressure := testutil.ToFloat64(TransitionsTotal.WithLabelValues("pressure"))
	accepted := testutil.ToFloat64(OutcomesTotal.WithLabelValues("accepted"))

	o.ObserveOutcome(snapshot.Accepted, next, tr)
	o.ObserveOutcome(snapshot.Debounced, next, snapshot.Transition{})

	if got := testutil.ToFloat64(TransitionsTotal.WithLabelValues("state")); got != state+1 {
		t.Errorf("transitions{state} = %v, want %v", got, state+1)
	}
	if got := testutil.ToFloat64(TransitionsTotal.WithLabelValues("pressure")); got != pressure+1 {
		t.Errorf("transitions{pressure} = %v, want %v", got, pressure+1)
	}
	if got := testutil.ToFloat64(OutcomesTotal.WithLabelValues("accepted")); got != accepted+1 {
		t.Errorf("outcomes{accepted} = %v, want %v", got, accepted+1)
	}
	if got := testutil.ToFloat64(StateLevel); got != float64(severity.Critical) {
		t.Errorf("state level = %v", got)
	}
	if got := testutil.ToFloat64(PressureLevel); got != float64(severity.Critical) {
		t.Errorf("pressure level = %v", got)
	}
}

func TestObserveSampleFailure(t *testing.T) {
	o := NewMonitorObserver()
	before := testutil.ToFloat64(SampleFailuresTotal)
	o.ObserveSampleFailure(errors.New("gone"))
	if got := testutil.ToFloat64(SampleFailuresTotal); got != before+1 {
		t.Errorf("failures = %v, want %v", got, before+1)
	}
}
