//go:build linux

package rt

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

func pin(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("set affinity to cpu %d: %w", cpu, err)
	}
	return nil
}

// MonotonicClock reads CLOCK_MONOTONIC. Its epoch is its creation.
// A failed read repeats the last good reading so time never runs backwards.
type MonotonicClock struct {
	epoch int64
	read  func() (int64, error)
	last  atomic.Uint64
}

// NewMonotonicClock starts a clock at zero.
func NewMonotonicClock() (*MonotonicClock, error) {
	now, err := monotonicNanos()
	if err != nil {
		return nil, err
	}
	return &MonotonicClock{epoch: now, read: monotonicNanos}, nil
}

func (c *MonotonicClock) Micros() uint64 {
	now, err := c.read()
	if err != nil {
		return c.last.Load()
	}
	us := uint64(now-c.epoch) / 1000
	c.last.Store(us)
	return us
}

func monotonicNanos() (int64, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, err
	}
	return ts.Nano(), nil
}
