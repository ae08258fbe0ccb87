package metrics

import (
	"github.com/headroom/headroom/internal/monitor"
	"github.com/headroom/headroom/internal/severity"
	"github.com/headroom/headroom/internal/snapshot"
)

// monitorObserver implements monitor.Observer using the series in metrics.go.
type monitorObserver struct{}

// NewMonitorObserver returns an observer that records engine activity into
// the package's Prometheus collectors.
func NewMonitorObserver() monitor.Observer {
	return &monitorObserver{}
}

func (o *monitorObserver) ObserveSample(trigger monitor.Trigger, s snapshot.Snapshot) {
	SamplesTotal.WithLabelValues(trigger.String()).Inc()
	UsedBytes.Set(float64(s.UsedBytes))
	RemainingBytes.Set(float64(s.RemainingBytes))
	LimitBytes.Set(float64(s.LimitBytes))
	UsageRatio.Set(s.Ratio())
}

func (o *monitorObserver) ObserveOutcome(outcome snapshot.Outcome, current snapshot.Snapshot, t snapshot.Transition) {
	OutcomesTotal.WithLabelValues(outcome.String()).Inc()
	StateLevel.Set(float64(current.State))
	PressureLevel.Set(float64(current.Pressure))
	if !outcome.Accepted() {
		return
	}
	if t.Changes.Has(severity.StateChanged) {
		TransitionsTotal.WithLabelValues("state").Inc()
	}
	if t.Changes.Has(severity.PressureChanged) {
		TransitionsTotal.WithLabelValues("pressure").Inc()
	}
}

func (o *monitorObserver) ObserveSampleFailure(error) {
	SampleFailuresTotal.Inc()
}
