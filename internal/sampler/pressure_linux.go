//go:build linux

package sampler

// DefaultPressureKind prefers kernel stall information where it exists.
const DefaultPressureKind = "psi"
