package cache

import (
	"fmt"
	"unsafe"
)

// calibrationTrials is the number of timed accesses averaged per
// measurement. Large enough to suppress timer noise.
const calibrationTrials = 1024

// Calibration is the latency model measured once at startup: mean hit
// latency, mean miss latency, and the fixed classification threshold
// between them. It is an immutable value passed into every later timed
// operation; recalibrating produces a new value.
type Calibration struct {
	// Hit is the mean latency of an access to a resident line.
	Hit uint64

	// Miss is the mean latency of an access to a flushed line.
	Miss uint64

	// Threshold is the hit/miss decision boundary, the arithmetic mean
	// of Hit and Miss. It is static; it is not adapted during channel
	// operation, so latency drift shows up as symbol errors.
	Threshold uint64
}

// IsHit classifies a single timed access.
func (cal Calibration) IsHit(latency uint64) bool {
	return latency <= cal.Threshold
}

// Calibrate measures mean hit and miss latency against a fixed probe
// address and derives the classification threshold. The probe buffer is
// zero-filled afterwards so later operations start from a known state.
//
// If the measured hit latency does not fall below the miss latency the
// timing source cannot distinguish the two cases and an error is
// returned; the result must not be used.
func (c *Context) Calibrate() (Calibration, error) {
	probe := unsafe.Pointer(&c.buffer[0])

	var sum uint64
	for trial := 0; trial < calibrationTrials; trial++ {
		c.source.Touch(probe)
		sum += c.source.TimedRead(probe)
	}
	hit := sum / calibrationTrials

	sum = 0
	for trial := 0; trial < calibrationTrials; trial++ {
		c.source.Flush(probe)
		sum += c.source.TimedRead(probe)
	}
	miss := sum / calibrationTrials

	if hit >= miss {
		return Calibration{}, fmt.Errorf(
			"%w: hit latency %d is not below miss latency %d",
			ErrCalibration, hit, miss)
	}

	for i := range c.buffer {
		c.buffer[i] = 0
	}

	return Calibration{
		Hit:       hit,
		Miss:      miss,
		Threshold: (hit + miss) / 2,
	}, nil
}
