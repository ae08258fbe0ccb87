// Package snapshot holds the immutable memory Snapshot value and the Store
// that decides whether a candidate replaces the current one.
package snapshot

import (
	"fmt"
	"math"

	"github.com/headroom/headroom/internal/severity"
)

// Snapshot is a single accepted view of the process footprint. It is a
// value type; copies never alias the store's state.
type Snapshot struct {
	UsedBytes      uint64         `json:"usedBytes"`
	RemainingBytes uint64         `json:"remainingBytes"`
	LimitBytes     uint64         `json:"limitBytes"`
	State          severity.Level `json:"state"`
	Pressure       severity.Level `json:"pressure"`
	TimestampMs    uint64         `json:"timestampMs"`
}

// New builds a Snapshot from raw counts. LimitBytes is derived as
// used+remaining (saturating), State is classified from the ratio, and
// pressure is clamped into {Normal, Warning, Critical}.
func New(used, remaining uint64, pressure severity.Level, timestampMs uint64) Snapshot {
	limit := used + remaining
	if limit < used {
		limit = math.MaxUint64
	}
	return Snapshot{
		UsedBytes:      used,
		RemainingBytes: remaining,
		LimitBytes:     limit,
		State:          severity.Classify(used, limit),
		Pressure:       pressure.AsPressure(),
		TimestampMs:    timestampMs,
	}
}

// Ratio is UsedBytes/LimitBytes, 0 when the limit is unknown.
func (s Snapshot) Ratio() float64 {
	return severity.Ratio(s.UsedBytes, s.LimitBytes)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("used=%d remaining=%d limit=%d state=%s pressure=%s t=%dms",
		s.UsedBytes, s.RemainingBytes, s.LimitBytes, s.State, s.Pressure, s.TimestampMs)
}

// Transition is the payload delivered to subscribers after an accepted change.
type Transition struct {
	Old     Snapshot           `json:"old"`
	New     Snapshot           `json:"new"`
	Changes severity.ChangeSet `json:"changes"`
}
