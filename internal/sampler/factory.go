package sampler

import (
	"fmt"
	"time"

	"github.com/headroom/headroom/internal/logging"
	"github.com/headroom/headroom/internal/severity"
	"github.com/prometheus/procfs"
)

// PressureOptions selects and tunes a PressureSource.
type PressureOptions struct {
	// Kind is "psi", "system", "static" or "none". Empty picks DefaultPressureKind.
	Kind     string
	Interval time.Duration
	// ProcRoot is the proc mount holding pressure/memory.
	ProcRoot string
	PSI      PSIThresholds
	System   SystemThresholds
}

// NewPressureSource builds the source named by o.Kind. A PSI source whose
// stall file cannot be read falls back to the system source.
func NewPressureSource(o PressureOptions) (PressureSource, error) {
	kind := o.Kind
	if kind == "" {
		kind = DefaultPressureKind
	}
	psi := o.PSI
	if psi == (PSIThresholds{}) {
		psi = DefaultPSIThresholds()
	}
	sys := o.System
	if sys == (SystemThresholds{}) {
		sys = DefaultSystemThresholds()
	}

	switch kind {
	case "psi":
		if _, err := memoryStallAvg10(o.procRoot()); err != nil {
			logging.Warn("[pressure] PSI unavailable under %s (%v), using system memory instead", o.procRoot(), err)
			return NewSystemPressure(o.Interval, sys), nil
		}
		return NewPSIPressure(o.procRoot(), o.Interval, psi), nil
	case "system":
		return NewSystemPressure(o.Interval, sys), nil
	case "static", "none":
		return NewStaticPressure(severity.Normal), nil
	default:
		return nil, fmt.Errorf("unknown pressure source %q", kind)
	}
}

func (o PressureOptions) procRoot() string {
	if o.ProcRoot == "" {
		return procfs.DefaultMountPoint
	}
	return o.ProcRoot
}
