package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

var errNilConfig = errors.New("serial: nil config")

// tarmPort is a Port on tarm/serial, which opens and configures the device.
type tarmPort struct {
	*serial.Port
	timeout time.Duration
}

// Open opens cfg.Device in raw mode at cfg.Baud.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	timeout := time.Duration(cfg.ReadTimeout) * time.Millisecond
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return &tarmPort{Port: p, timeout: timeout}, nil
}

// Read turns tarm's io.EOF on an expired read timeout into an empty read
// so callers keep polling.
func (p *tarmPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && p.timeout > 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}
