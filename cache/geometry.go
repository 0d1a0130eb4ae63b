// Package cache characterizes the L1 data cache at runtime and provides
// the Prime+Probe primitives built on that characterization: eviction-set
// fill and flush, latency calibration, and set-occupancy probing.
package cache

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrLog2Zero is returned by Log2Floor for a zero input.
	ErrLog2Zero = errors.New("log2 of zero is undefined")

	// ErrGeometry indicates inconsistent or zero-valued cache geometry.
	ErrGeometry = errors.New("invalid cache geometry")

	// ErrSetIndex indicates a set index outside [0, SetCount).
	ErrSetIndex = errors.New("set index out of range")

	// ErrAddressBounds indicates a computed probe address outside the
	// probe buffer. It means the geometry or the addressing arithmetic
	// is wrong and measurements cannot be trusted.
	ErrAddressBounds = errors.New("probe address outside buffer bounds")

	// ErrCalibration indicates that measured hit latency did not fall
	// below measured miss latency, so no classification threshold
	// exists.
	ErrCalibration = errors.New("calibration failed")
)

// Geometry describes a set-associative cache and the address-bit fields
// derived from its shape. It is immutable after derivation.
type Geometry struct {
	// Size of the cache in bytes.
	Size int

	// LineSize of a cache line in bytes.
	LineSize int

	// Associativity is the number of ways per set.
	Associativity int

	// SetCount is the number of sets.
	SetCount int

	// IndexShift is the bit position where the set-index field begins.
	IndexShift uint

	// TagShift is the bit position where the tag field begins.
	TagShift uint

	// OffsetMask selects the block-offset bits of an address.
	OffsetMask uintptr

	// IndexMask selects the set-index bits of an address.
	IndexMask uintptr

	// TagMask selects the tag bits of an address.
	TagMask uintptr
}

// Log2Floor returns the discrete log of n rounded down, i.e. the position
// of the most significant one bit. A zero input is a checked error, not
// undefined behavior.
func Log2Floor(n uint64) (uint, error) {
	if n == 0 {
		return 0, ErrLog2Zero
	}
	return uint(bits.Len64(n) - 1), nil
}

// DeriveGeometry computes the derived fields of a cache described by its
// size, line size, and associativity. The inputs are trusted platform
// reports; inconsistent values are a configuration error.
func DeriveGeometry(size, lineSize, associativity int) (Geometry, error) {
	if size <= 0 || lineSize <= 0 || associativity <= 0 {
		return Geometry{}, fmt.Errorf(
			"%w: size=%d line=%d assoc=%d (all must be positive)",
			ErrGeometry, size, lineSize, associativity)
	}

	setSize := lineSize * associativity
	if size%setSize != 0 {
		return Geometry{}, fmt.Errorf(
			"%w: size %d is not a multiple of line*assoc %d",
			ErrGeometry, size, setSize)
	}
	setCount := size / setSize

	if lineSize&(lineSize-1) != 0 {
		return Geometry{}, fmt.Errorf(
			"%w: line size %d is not a power of two", ErrGeometry, lineSize)
	}
	if setCount&(setCount-1) != 0 {
		return Geometry{}, fmt.Errorf(
			"%w: set count %d is not a power of two", ErrGeometry, setCount)
	}

	indexShift, err := Log2Floor(uint64(lineSize))
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	indexWidth, err := Log2Floor(uint64(setCount))
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	tagShift := indexWidth + indexShift

	return Geometry{
		Size:          size,
		LineSize:      lineSize,
		Associativity: associativity,
		SetCount:      setCount,
		IndexShift:    indexShift,
		TagShift:      tagShift,
		OffsetMask:    uintptr(lineSize - 1),
		IndexMask:     uintptr(setCount-1) << indexShift,
		TagMask:       ^uintptr(0) << tagShift,
	}, nil
}

// SetOf returns the set index the address maps to.
func (g Geometry) SetOf(addr uintptr) int {
	return int((addr & g.IndexMask) >> g.IndexShift)
}

// WayStride is the byte distance between consecutive ways of an eviction
// set when striding through a size-aligned buffer.
func (g Geometry) WayStride() int {
	return g.SetCount << g.IndexShift
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dB %d-way, %dB lines, %d sets",
		g.Size, g.Associativity, g.LineSize, g.SetCount)
}
