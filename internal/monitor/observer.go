package monitor

import "github.com/headroom/headroom/internal/snapshot"

// Observer receives engine activity for instrumentation. Methods run on the
// sampling goroutine and must return quickly.
type Observer interface {
	// ObserveSample is called for every candidate, accepted or not.
	ObserveSample(trigger Trigger, candidate snapshot.Snapshot)
	// ObserveOutcome reports the store's decision and the snapshot that is
	// current afterwards.
	ObserveOutcome(outcome snapshot.Outcome, current snapshot.Snapshot, t snapshot.Transition)
	// ObserveSampleFailure is called when the raw sampler fails.
	ObserveSampleFailure(err error)
}

type noopObserver struct{}

func (noopObserver) ObserveSample(Trigger, snapshot.Snapshot) {}

func (noopObserver) ObserveOutcome(snapshot.Outcome, snapshot.Snapshot, snapshot.Transition) {}

func (noopObserver) ObserveSampleFailure(error) {}
