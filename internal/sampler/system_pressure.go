package sampler

import (
	"time"

	"github.com/headroom/headroom/internal/severity"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemThresholds map host memory used percent onto pressure levels.
type SystemThresholds struct {
	Warning  float64
	Critical float64
}

func DefaultSystemThresholds() SystemThresholds {
	return SystemThresholds{Warning: 80, Critical: 95}
}

func (t SystemThresholds) level(usedPercent float64) severity.Level {
	switch {
	case usedPercent >= t.Critical:
		return severity.Critical
	case usedPercent >= t.Warning:
		return severity.Warning
	default:
		return severity.Normal
	}
}

// NewSystemPressure derives pressure from host-wide memory use reported by
// gopsutil. It works on every platform gopsutil supports.
func NewSystemPressure(interval time.Duration, t SystemThresholds) *PollingPressure {
	return NewPollingPressure("system", interval, func() (severity.Level, error) {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return severity.Normal, err
		}
		return t.level(vm.UsedPercent), nil
	})
}
