//go:build !linux

package sampler

// DefaultPressureKind falls back to host memory use outside Linux.
const DefaultPressureKind = "system"
