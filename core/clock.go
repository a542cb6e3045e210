package core

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic microsecond time source.
type Clock interface {
	Micros() uint64
}

// SystemClock returns a Clock backed by the runtime's monotonic time.
// Its epoch is the moment it was created.
func SystemClock() Clock {
	return &systemClock{start: time.Now()}
}

type systemClock struct {
	start time.Time
}

func (c *systemClock) Micros() uint64 {
	return uint64(time.Since(c.start) / time.Microsecond)
}

// ManualClock is a Clock that only moves when told to.
// Used by tests and the simulator to run the step loop in virtual time.
type ManualClock struct {
	now atomic.Uint64
}

// NewManualClock creates a clock reading start microseconds.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) Micros() uint64 {
	return c.now.Load()
}

// Set jumps the clock to an absolute time.
func (c *ManualClock) Set(us uint64) {
	c.now.Store(us)
}

// Advance moves the clock forward and returns the new time.
func (c *ManualClock) Advance(us uint64) uint64 {
	return c.now.Add(us)
}
