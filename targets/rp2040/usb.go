//go:build rp2040

package main

import "machine"

// InitUSB configures the USB CDC port the host link runs over.
func InitUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// usbReadChunk moves buffered USB bytes into buf without blocking.
func usbReadChunk(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = b
		n++
	}
	return n
}

// usbWriter gives up on the first stalled write and counts consecutive
// stalls, so a host that stopped reading cannot hang the link loop.
type usbWriter struct {
	failures uint32
}

func (w *usbWriter) Write(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := machine.Serial.Write(data[written:])
		if err != nil || n == 0 {
			w.failures++
			return written, errUSBStalled
		}
		written += n
	}
	w.failures = 0
	return written, nil
}
