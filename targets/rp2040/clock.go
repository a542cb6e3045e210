//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 timer peripheral, a free-running 64-bit µs counter.
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24 // raw high word, no latch
	timerTIMERAWL = timerBase + 0x28 // raw low word, no latch
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// hwClock reads the hardware timer. It is safe to use from both cores
// because the raw registers have no read latch.
type hwClock struct{}

func (hwClock) Micros() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		// retry if the low word wrapped during the read
		if high1 == high2 {
			return uint64(high1)<<32 | uint64(low)
		}
	}
}
