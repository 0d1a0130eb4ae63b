//go:build linux

// Package affinity pins the measuring thread to one logical CPU. Pinning
// is a correctness requirement, not an optimization: the calibration and
// every occupancy measurement describe the L1 cache of the core the
// thread runs on, and a migration mid-run invalidates both.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and binds that thread
// to the given logical CPU. The caller must keep running on the calling
// goroutine for the pin to hold; there is no unpin.
func Pin(cpu int) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pinning to cpu %d: %w", cpu, err)
	}
	return nil
}
