// Package serial opens the host end of a controller link.
package serial

import (
	"io"
	"strings"

	bugst "go.bug.st/serial"
)

// Port is an open serial device.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output.
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// USB CDC ignores the baud rate; UART bridges do not.
	Baud int

	// Read timeout in milliseconds (0 = blocking). A timed-out read
	// returns (0, nil).
	ReadTimeout int
}

// DefaultConfig returns the settings the firmware expects.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
	}
}

// ListPorts returns the serial devices present, skipping Bluetooth
// pseudo-ports.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, err
	}
	out := ports[:0]
	for _, p := range ports {
		if strings.Contains(p, "Bluetooth") {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
