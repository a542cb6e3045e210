//go:build !linux

package rt

import (
	"time"

	"smoothstep/core"
)

// Affinity is not available here; the loop still gets its own thread.
func pin(cpu int) error {
	core.DebugPrintln("rt: cpu affinity unsupported on this platform")
	return nil
}

// MonotonicClock falls back to the runtime's monotonic time.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock starts a clock at zero.
func NewMonotonicClock() (*MonotonicClock, error) {
	return &MonotonicClock{start: time.Now()}, nil
}

func (c *MonotonicClock) Micros() uint64 {
	return uint64(time.Since(c.start) / time.Microsecond)
}
