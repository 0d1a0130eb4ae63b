package cache

import "fmt"

// FillSet touches one distinct memory block per way of the set, striding
// through the probe buffer by SetCount*LineSize bytes. Under an LRU-like
// replacement policy the set afterwards holds only this context's blocks,
// having evicted whatever was resident — including another process's
// lines. This is the "prime" half of Prime+Probe and, between symbols,
// the transmitter's eviction primitive.
//
// The LRU assumption is stated, not verified; on other replacement
// policies some ways may survive and detection accuracy degrades.
func (c *Context) FillSet(set int) error {
	if err := c.checkSet(set); err != nil {
		return err
	}

	for way := 0; way < c.geometry.Associativity; way++ {
		ptr, err := c.wayAddress(set, way)
		if err != nil {
			return err
		}
		c.source.Touch(ptr)
	}

	return nil
}

// FlushSet explicitly evicts each of the blocks FillSet uses for the set.
// It only affects this context's own lines: if none of them are resident
// the flushes are no-ops, and another process's lines in the set stay
// untouched. Use FillSet to take a set away from another process.
func (c *Context) FlushSet(set int) error {
	if err := c.checkSet(set); err != nil {
		return err
	}

	for way := 0; way < c.geometry.Associativity; way++ {
		ptr, err := c.wayAddress(set, way)
		if err != nil {
			return err
		}
		c.source.Flush(ptr)
	}

	return nil
}

// ProbeSet times an access to every way of the set and returns how many
// classify as hits under the calibration, in [0, Associativity]. Shortly
// after FillSet on an undisturbed set the count is the full
// associativity; a reduced count means something else ran in between and
// evicted this context's lines — the observable side channel.
//
// Probing has the same side effect a timed read always has: missing ways
// are brought back in, so a probe re-primes the set it measures.
func (c *Context) ProbeSet(set int, cal Calibration) (int, error) {
	if err := c.checkSet(set); err != nil {
		return -1, err
	}

	count := 0
	for way := 0; way < c.geometry.Associativity; way++ {
		ptr, err := c.wayAddress(set, way)
		if err != nil {
			return -1, err
		}
		if cal.IsHit(c.source.TimedRead(ptr)) {
			count++
		}
	}

	return count, nil
}

// ProbeWay times a single way of the set and reports whether it
// classifies as a hit. The protocol layer polls one way instead of the
// whole set when it must watch for a peer's fill without re-priming more
// than one line.
func (c *Context) ProbeWay(set, way int, cal Calibration) (bool, error) {
	if err := c.checkSet(set); err != nil {
		return false, err
	}
	if way < 0 || way >= c.geometry.Associativity {
		return false, fmt.Errorf("%w: way %d not in [0, %d)",
			ErrSetIndex, way, c.geometry.Associativity)
	}

	ptr, err := c.wayAddress(set, way)
	if err != nil {
		return false, err
	}

	return cal.IsHit(c.source.TimedRead(ptr)), nil
}
