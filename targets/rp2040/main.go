//go:build rp2040

package main

import (
	"errors"
	"machine"
	"time"

	"smoothstep/core"
)

var errUSBStalled = errors.New("usb write stalled")

// disconnectAfter consecutive failed writes drops the link state.
const disconnectAfter = 10

var (
	motors []*core.Motor
	link   *core.Link
)

func main() {
	// clear watchdog state left from a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	machine.DefaultUART.Configure(machine.UARTConfig{BaudRate: 115200})
	core.SetDebugWriter(func(s string) {
		machine.DefaultUART.Write([]byte(s + "\r\n"))
	})
	core.InitAsyncDebug()

	var err error
	motors, err = buildMotors(hwClock{})
	if err != nil {
		core.SetDebugEnabled(true)
		for {
			core.DebugPrintln("motor setup: " + err.Error())
			time.Sleep(time.Second)
		}
	}
	link = core.NewLink(motors)

	machine.Core1.Start(stepLoops)
	linkLoop()
}

// stepLoops runs every motor's step loop on core 1, one Poll each per pass.
func stepLoops() {
	clock := hwClock{}
	for {
		now := clock.Micros()
		for _, m := range motors {
			m.Poll(now)
		}
	}
}

// linkLoop serves the host on core 0.
func linkLoop() {
	buf := make([]byte, 64)
	out := &usbWriter{}

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					core.DebugAsync("link: recovered from panic, resetting")
					link.Reset()
				}
			}()

			if n := usbReadChunk(buf); n > 0 {
				link.Feed(buf[:n])
			}
			if err := link.Flush(out); err != nil && out.failures > disconnectAfter {
				// host went away; start clean when it returns
				out.failures = 0
				link.Reset()
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}
