// Package mock provides a synthetic RawSampler that walks through
// recognizable memory patterns, for demos and for exercising clients
// without a real memory-hungry process.
package mock

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

const tickInterval = 500 * time.Millisecond

// ErrSampleUnavailable is what the flaky pattern returns while "down".
var ErrSampleUnavailable = errors.New("mock: sample unavailable")

type pattern func(g *Generator)

var patterns = map[string]pattern{
	"steady": (*Generator).advanceSteady,
	"burst":  (*Generator).advanceBurst,
	"leak":   (*Generator).advanceLeak,
	"flaky":  (*Generator).advanceFlaky,
}

// Patterns lists the pattern names NewGenerator accepts.
func Patterns() []string {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generator models one process's footprint under a fixed limit.
type Generator struct {
	mu      sync.Mutex
	name    string
	advance pattern
	limit   uint64
	used    uint64
	tick    int
	failing bool
	rng     *rand.Rand
}

func NewGenerator(name string, limit uint64) (*Generator, error) {
	p, ok := patterns[name]
	if !ok {
		return nil, fmt.Errorf("unknown mock pattern %q (want one of %v)", name, Patterns())
	}
	if limit == 0 {
		return nil, errors.New("mock limit must be positive")
	}
	return &Generator{
		name:    name,
		advance: p,
		limit:   limit,
		used:    limit / 10,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (g *Generator) Name() string { return g.name }

// Start advances the pattern every tick until ctx is done.
func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.step()
		}
	}
}

func (g *Generator) step() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick++
	g.advance(g)
	if g.used > g.limit {
		g.used = g.limit
	}
}

// Sample implements sampler.RawSampler.
func (g *Generator) Sample() (uint64, uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failing {
		return 0, 0, ErrSampleUnavailable
	}
	return g.used, g.limit - g.used, nil
}

// fraction returns limit*num/den without overflowing for large limits.
func (g *Generator) fraction(num, den uint64) uint64 {
	return g.limit/den*num + g.limit%den*num/den
}

func (g *Generator) jitter(span uint64) uint64 {
	if span == 0 {
		return 0
	}
	return uint64(g.rng.Int63n(int64(span)))
}

// advanceSteady climbs to 95% and then drops back as if a large cache
// were released.
func (g *Generator) advanceSteady() {
	if g.used >= g.fraction(95, 100) {
		g.used = g.fraction(10, 100)
		return
	}
	g.grow(g.fraction(1, 40) + g.jitter(g.fraction(1, 100)))
}

// advanceBurst idles around 20% with a three tick spike every eight ticks.
func (g *Generator) advanceBurst() {
	if g.tick%8 < 3 {
		g.used = g.fraction(80, 100) + g.jitter(g.fraction(12, 100))
		return
	}
	g.used = g.fraction(20, 100) + g.jitter(g.fraction(5, 100))
}

// advanceLeak grows slowly and never frees, restarting at the limit.
func (g *Generator) advanceLeak() {
	if g.used >= g.limit {
		g.used = g.fraction(5, 100)
		return
	}
	g.grow(g.fraction(1, 200))
}

// grow adds delta, stopping at the limit.
func (g *Generator) grow(delta uint64) {
	if delta > g.limit-g.used {
		g.used = g.limit
		return
	}
	g.used += delta
}

// advanceFlaky behaves like steady but is unreadable for three ticks out
// of every twenty.
func (g *Generator) advanceFlaky() {
	g.failing = g.tick%20 >= 17
	g.advanceSteady()
}
