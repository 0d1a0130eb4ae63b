//go:build !amd64

package timing

import (
	"time"
	"unsafe"
)

// Monotonic is a best-effort Source that times accesses with the runtime
// monotonic clock. It has no cache-maintenance primitive, so Flush is a
// no-op and calibration against this source reports an explicit error
// instead of producing a bogus threshold.
type Monotonic struct{}

// Hardware returns the most precise Source available on this platform.
func Hardware() Source { return Monotonic{} }

// Touch reads the byte at ptr.
func (Monotonic) Touch(ptr unsafe.Pointer) { sink = *(*byte)(ptr) }

// Flush is a no-op on this platform.
func (Monotonic) Flush(ptr unsafe.Pointer) {}

// TimedRead returns the latency of a single read at ptr in nanoseconds.
func (Monotonic) TimedRead(ptr unsafe.Pointer) uint64 {
	start := time.Now()
	sink = *(*byte)(ptr)
	return uint64(time.Since(start))
}
