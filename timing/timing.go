// Package timing provides the timed memory-access primitives that cache
// characterization is built on.
//
// The Source interface splits the hardware-specific parts (cycle-counter
// reads, cache-line flushes) from the measurement logic so that the
// calibrator and the occupancy probe can run against a deterministic
// simulated cache in tests. Two hardware-backed variants exist: a precise
// timestamp-counter source with serializing fences (amd64) and a
// best-effort monotonic-clock source for other platforms.
package timing

import "unsafe"

// Source is the capability interface for timed cache accesses.
type Source interface {
	// Touch reads the byte at ptr, pulling its cache line in.
	Touch(ptr unsafe.Pointer)

	// Flush evicts the cache line containing ptr using the platform's
	// cache-maintenance mechanism. On platforms without one, Flush is a
	// no-op and miss calibration will fail with an explicit error.
	Flush(ptr unsafe.Pointer)

	// TimedRead reads the byte at ptr and returns the access latency.
	// The unit is source-specific (cycles for the hardware counter,
	// nanoseconds for the monotonic fallback); only the relative
	// difference between hits and misses matters.
	TimedRead(ptr unsafe.Pointer) uint64
}

// sink defeats dead-load elimination for plain Go reads.
var sink byte
