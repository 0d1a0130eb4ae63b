package cache

import (
	"fmt"
	"unsafe"

	"github.com/sarchlab/l1chan/timing"
)

// Context combines a cache Geometry, a timing.Source, and the probe
// buffer used for eviction-set addressing. It is the single long-lived
// object every later operation takes.
//
// The probe buffer is size*associativity bytes, aligned to the cache
// size, so that offset arithmetic alone decides which set an address maps
// to and one distinct block exists per way of every set. The Context
// exclusively owns the buffer; it is allocated once here and released
// exactly once by Close.
type Context struct {
	geometry Geometry
	source   timing.Source

	buffer []byte
	mapped []byte // non-nil when the buffer is mmap-backed
	closed bool
}

// NewContext allocates the probe buffer for the given geometry and
// returns a ready-to-calibrate Context.
func NewContext(geometry Geometry, source timing.Source) (*Context, error) {
	if source == nil {
		return nil, fmt.Errorf("timing source must not be nil")
	}

	bufferSize := geometry.Size * geometry.Associativity
	buffer, mapped, err := allocAligned(bufferSize, geometry.Size)
	if err != nil {
		return nil, fmt.Errorf("probe buffer allocation failed: %w", err)
	}

	return &Context{
		geometry: geometry,
		source:   source,
		buffer:   buffer,
		mapped:   mapped,
	}, nil
}

// Geometry returns the cache geometry the context was built for.
func (c *Context) Geometry() Geometry {
	return c.geometry
}

// BufferLen returns the probe buffer length in bytes.
func (c *Context) BufferLen() int {
	return len(c.buffer)
}

// Close releases the probe buffer. Only the first call releases; later
// calls are no-ops.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	mapped := c.mapped
	c.buffer = nil
	c.mapped = nil

	if mapped != nil {
		return releaseMapped(mapped)
	}
	return nil
}

// wayAddress returns the address of way k of set s within the probe
// buffer. An address that would leave the buffer is a consistency error.
func (c *Context) wayAddress(set, way int) (unsafe.Pointer, error) {
	offset := set<<c.geometry.IndexShift + way*c.geometry.WayStride()
	if offset < 0 || offset >= len(c.buffer) {
		return nil, fmt.Errorf("%w: set %d way %d maps to offset %d of %d",
			ErrAddressBounds, set, way, offset, len(c.buffer))
	}
	return unsafe.Pointer(&c.buffer[offset]), nil
}

// checkSet validates a set index against the geometry.
func (c *Context) checkSet(set int) error {
	if set < 0 || set >= c.geometry.SetCount {
		return fmt.Errorf("%w: %d not in [0, %d)",
			ErrSetIndex, set, c.geometry.SetCount)
	}
	return nil
}
