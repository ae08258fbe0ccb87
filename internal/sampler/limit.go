package sampler

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/headroom/headroom/internal/logging"
	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/v3/mem"
)

// LimitSource names where a termination limit came from.
type LimitSource string

const (
	SourceExplicit   LimitSource = "explicit"
	SourceEnv        LimitSource = "MEMORY_LIMIT"
	SourceCgroupV2   LimitSource = "cgroup2"
	SourceCgroupV1   LimitSource = "cgroup1"
	SourceGoMemLimit LimitSource = "GOMEMLIMIT"
	SourceSystem     LimitSource = "system"
)

// DefaultCgroupRoot is where cgroup files are looked up.
const DefaultCgroupRoot = "/sys/fs/cgroup"

// Values at or above this are how cgroup v1 spells "unlimited".
const cgroupUnlimited = 1 << 62

var ErrNoLimit = errors.New("no memory limit could be determined")

// Limit is a resolved termination limit.
type Limit struct {
	Bytes  uint64      `json:"bytes"`
	Source LimitSource `json:"source"`
}

// LimitOptions configures a LimitResolver.
type LimitOptions struct {
	// Explicit overrides every other source when non-zero.
	Explicit uint64
	// CgroupRoot is the cgroup mount point; empty uses DefaultCgroupRoot.
	CgroupRoot string
	// ProcRoot is where /proc/<pid>/cgroup is read; empty uses
	// procfs.DefaultMountPoint.
	ProcRoot string
	// UseGoMemLimit consults the runtime soft limit before the system total.
	UseGoMemLimit bool
}

// LimitResolver picks the tightest limit the platform will enforce on a
// process, in order: explicit, MEMORY_LIMIT, cgroup v2 memory.max, cgroup v1
// memory.limit_in_bytes, GOMEMLIMIT, total system memory.
//
// MEMORY_LIMIT and GOMEMLIMIT describe headroomd itself and are only
// consulted when the process being resolved is our own. Cgroup limits are
// read along the process's own cgroup path, taken from /proc/<pid>/cgroup.
type LimitResolver struct {
	opts    LimitOptions
	selfPID int

	lookupEnv   func(string) (string, bool)
	readFile    func(string) ([]byte, error)
	cgroupsOf   func(pid int) ([]procfs.Cgroup, error)
	goMemLimit  func() int64
	systemTotal func() (uint64, error)

	mu         sync.Mutex
	lastSource LimitSource
}

func NewLimitResolver(opts LimitOptions) *LimitResolver {
	if opts.CgroupRoot == "" {
		opts.CgroupRoot = DefaultCgroupRoot
	}
	if opts.ProcRoot == "" {
		opts.ProcRoot = procfs.DefaultMountPoint
	}
	return &LimitResolver{
		opts:        opts,
		selfPID:     os.Getpid(),
		lookupEnv:   os.LookupEnv,
		readFile:    os.ReadFile,
		cgroupsOf:   procCgroups(opts.ProcRoot),
		goMemLimit:  func() int64 { return debug.SetMemoryLimit(-1) },
		systemTotal: systemTotal,
	}
}

func procCgroups(root string) func(int) ([]procfs.Cgroup, error) {
	return func(pid int) ([]procfs.Cgroup, error) {
		fs, err := procfs.NewFS(root)
		if err != nil {
			return nil, err
		}
		p, err := fs.Proc(pid)
		if err != nil {
			return nil, err
		}
		return p.Cgroups()
	}
}

func systemTotal() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.Total, nil
}

// Resolve returns the current limit for pid; 0 means headroomd itself. Each
// call re-reads its sources so a resized container is picked up on the next
// sample.
func (r *LimitResolver) Resolve(pid int) (Limit, error) {
	l, err := r.resolve(pid)
	if err != nil {
		return Limit{}, err
	}
	r.mu.Lock()
	changed := l.Source != r.lastSource
	r.lastSource = l.Source
	r.mu.Unlock()
	if changed {
		logging.Info("[limit] using %s limit: %s", l.Source, FormatBytes(l.Bytes))
	}
	return l, nil
}

func (r *LimitResolver) resolve(pid int) (Limit, error) {
	if r.opts.Explicit > 0 {
		return Limit{Bytes: r.opts.Explicit, Source: SourceExplicit}, nil
	}
	self := pid <= 0 || pid == r.selfPID
	if pid <= 0 {
		pid = r.selfPID
	}

	if v, ok := r.lookupEnv("MEMORY_LIMIT"); self && ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err == nil && n > 0 {
			return Limit{Bytes: n, Source: SourceEnv}, nil
		}
		logging.Debug("[limit] ignoring MEMORY_LIMIT %q: %v", v, err)
	}

	v2, v1 := r.cgroupPaths(pid, self)
	if n, ok := r.cgroupLimit(r.opts.CgroupRoot, v2, "memory.max"); ok {
		return Limit{Bytes: n, Source: SourceCgroupV2}, nil
	}
	if n, ok := r.cgroupLimit(filepath.Join(r.opts.CgroupRoot, "memory"), v1, "memory.limit_in_bytes"); ok {
		return Limit{Bytes: n, Source: SourceCgroupV1}, nil
	}

	if self && r.opts.UseGoMemLimit {
		if n := r.goMemLimit(); n > 0 && n < math.MaxInt64 {
			return Limit{Bytes: uint64(n), Source: SourceGoMemLimit}, nil
		}
	}

	total, err := r.systemTotal()
	if err != nil {
		return Limit{}, fmt.Errorf("%w: %v", ErrNoLimit, err)
	}
	if total == 0 {
		return Limit{}, ErrNoLimit
	}
	return Limit{Bytes: total, Source: SourceSystem}, nil
}

// cgroupPaths returns pid's cgroup v2 path and its v1 memory controller
// path. An empty path means that hierarchy is skipped. When the cgroup file
// cannot be read our own process falls back to the mount root, which is
// where a container sees its own cgroup; another process gets no cgroup
// limit at all.
func (r *LimitResolver) cgroupPaths(pid int, self bool) (v2, v1 string) {
	groups, err := r.cgroupsOf(pid)
	if err != nil {
		logging.Debug("[limit] cgroup of pid %d unknown: %v", pid, err)
		if self {
			return "/", "/"
		}
		return "", ""
	}
	for _, g := range groups {
		if g.HierarchyID == 0 && len(g.Controllers) == 0 {
			v2 = g.Path
		}
		for _, c := range g.Controllers {
			if c == "memory" {
				v1 = g.Path
			}
		}
	}
	return v2, v1
}

// cgroupLimit walks from rel up to the mount root and returns the smallest
// limit set in file along the way. A parent's limit binds its children.
func (r *LimitResolver) cgroupLimit(mount, rel, file string) (uint64, bool) {
	if rel == "" {
		return 0, false
	}
	var (
		best  uint64
		found bool
	)
	for p := path.Clean("/" + rel); ; p = path.Dir(p) {
		if n, ok := r.cgroupValue(filepath.Join(mount, filepath.FromSlash(p), file)); ok && (!found || n < best) {
			best, found = n, true
		}
		if p == "/" {
			break
		}
	}
	return best, found
}

// cgroupValue reads a cgroup limit file. "max", unlimited sentinels, zero
// and unreadable files all report ok=false.
func (r *LimitResolver) cgroupValue(name string) (uint64, bool) {
	data, err := r.readFile(name)
	if err != nil {
		return 0, false
	}
	s := strings.TrimSpace(string(data))
	if s == "" || s == "max" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 || n >= cgroupUnlimited {
		return 0, false
	}
	return n, true
}

// FormatBytes renders b with binary units, e.g. "512.0 MiB".
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatUint(b, 10) + " B"
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
