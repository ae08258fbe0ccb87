package sampler

import (
	"errors"
	"time"

	"github.com/headroom/headroom/internal/severity"
	"github.com/prometheus/procfs"
)

// PSIThresholds map the "some avg10" stall percentage onto pressure levels.
type PSIThresholds struct {
	Warning  float64
	Critical float64
}

func DefaultPSIThresholds() PSIThresholds {
	return PSIThresholds{Warning: 10, Critical: 40}
}

var errNoSomeLine = errors.New("memory PSI has no \"some\" line")

// memoryStallAvg10 reads the "some avg10" share of <root>/pressure/memory.
func memoryStallAvg10(root string) (float64, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return 0, err
	}
	stats, err := fs.PSIStatsForResource("memory")
	if err != nil {
		return 0, err
	}
	if stats.Some == nil {
		return 0, errNoSomeLine
	}
	return stats.Some.Avg10, nil
}

func (t PSIThresholds) level(avg10 float64) severity.Level {
	switch {
	case avg10 >= t.Critical:
		return severity.Critical
	case avg10 >= t.Warning:
		return severity.Warning
	default:
		return severity.Normal
	}
}

// NewPSIPressure polls memory PSI under the proc mount root. An empty root
// uses procfs.DefaultMountPoint.
func NewPSIPressure(root string, interval time.Duration, t PSIThresholds) *PollingPressure {
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	return NewPollingPressure("psi", interval, func() (severity.Level, error) {
		avg, err := memoryStallAvg10(root)
		if err != nil {
			return severity.Normal, err
		}
		return t.level(avg), nil
	})
}
