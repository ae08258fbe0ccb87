package sampler

import (
	"sync"
	"time"
)

const defaultFailureThreshold = 3

// HealthStatus summarizes recent sampler reliability.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// HealthReport is a consistent copy of the sampler's failure counters.
type HealthReport struct {
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	TotalFailures       uint64       `json:"totalFailures"`
	LastError           string       `json:"lastError,omitempty"`
	LastFailure         time.Time    `json:"lastFailure,omitzero"`
}

// health tracks consecutive raw sample failures. CanAllocate may run on any
// goroutine while the scheduler samples, so every field is guarded by mu.
type health struct {
	mu                sync.Mutex
	threshold         int
	consecutive       int
	total             uint64
	lastErr           string
	lastFail          time.Time
	lastEmittedStatus HealthStatus
}

func newHealth(threshold int) *health {
	return &health{threshold: threshold, lastEmittedStatus: StatusHealthy}
}

func (h *health) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutive = 0
}

func (h *health) recordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutive++
	h.total++
	h.lastErr = err.Error()
	h.lastFail = time.Now()
}

// statusLocked computes the status. Caller must hold h.mu.
func (h *health) statusLocked() HealthStatus {
	switch {
	case h.consecutive >= h.threshold:
		return StatusFailed
	case h.consecutive > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

func (h *health) reportLocked() HealthReport {
	return HealthReport{
		Status:              h.statusLocked(),
		ConsecutiveFailures: h.consecutive,
		TotalFailures:       h.total,
		LastError:           h.lastErr,
		LastFailure:         h.lastFail,
	}
}

func (h *health) report() HealthReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reportLocked()
}

// reportAndMark combines report and change detection in one lock acquisition.
func (h *health) reportAndMark() (HealthReport, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.reportLocked()
	changed := r.Status != h.lastEmittedStatus
	if changed {
		h.lastEmittedStatus = r.Status
	}
	return r, changed
}
