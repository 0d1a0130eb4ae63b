//go:build amd64

package timing

import "unsafe"

// TSC is a Source backed by the processor timestamp counter. Reads are
// bracketed by RDTSCP+LFENCE pairs so that the measured interval covers
// exactly one memory access, and Flush issues CLFLUSH followed by MFENCE.
type TSC struct{}

// Hardware returns the most precise Source available on this platform.
func Hardware() Source { return TSC{} }

// Touch reads the byte at ptr.
func (TSC) Touch(ptr unsafe.Pointer) { cacheTouch(ptr) }

// Flush evicts the cache line containing ptr.
func (TSC) Flush(ptr unsafe.Pointer) { cacheFlush(ptr) }

// TimedRead returns the latency of a single read at ptr in TSC cycles.
func (TSC) TimedRead(ptr unsafe.Pointer) uint64 { return timedRead(ptr) }

// Implemented in tsc_amd64.s.
func cacheTouch(ptr unsafe.Pointer)
func cacheFlush(ptr unsafe.Pointer)
func timedRead(ptr unsafe.Pointer) uint64
