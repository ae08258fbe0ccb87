package sampler

import (
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSampler reads a process's resident set size through gopsutil and
// measures it against the limit chosen by a LimitResolver.
type ProcessSampler struct {
	pid    int32
	limits *LimitResolver

	mu   sync.Mutex
	proc *process.Process
}

// NewProcessSampler samples pid, or the current process when pid is 0. The
// process handle is opened lazily, so construction cannot fail.
func NewProcessSampler(pid int, limits *LimitResolver) *ProcessSampler {
	if pid <= 0 {
		pid = os.Getpid()
	}
	if limits == nil {
		limits = NewLimitResolver(LimitOptions{})
	}
	return &ProcessSampler{pid: int32(pid), limits: limits}
}

// PID returns the sampled process id.
func (s *ProcessSampler) PID() int { return int(s.pid) }

func (s *ProcessSampler) handle() (*process.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != nil {
		return s.proc, nil
	}
	p, err := process.NewProcess(s.pid)
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", s.pid, err)
	}
	s.proc = p
	return p, nil
}

// forget drops the cached handle so the next sample reopens the process.
func (s *ProcessSampler) forget() {
	s.mu.Lock()
	s.proc = nil
	s.mu.Unlock()
}

func (s *ProcessSampler) Sample() (uint64, uint64, error) {
	p, err := s.handle()
	if err != nil {
		return 0, 0, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		s.forget()
		return 0, 0, fmt.Errorf("memory info for %d: %w", s.pid, err)
	}
	limit, err := s.limits.Resolve(int(s.pid))
	if err != nil {
		return 0, 0, err
	}
	return info.RSS, headroom(info.RSS, limit.Bytes), nil
}

// headroom is limit-used, 0 once the footprint reaches the limit.
func headroom(used, limit uint64) uint64 {
	if used >= limit {
		return 0
	}
	return limit - used
}
