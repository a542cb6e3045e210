// Package outputs provides the host-side coil sinks a core.Motor renders its
// phase patterns to: Linux GPIO character devices, periph, /dev/gpiomem on a
// Raspberry Pi, and an Arduino running Firmata.
package outputs

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"smoothstep/core"
)

// Sink is a core.GPIODriver that holds hardware resources until closed.
type Sink interface {
	core.GPIODriver
	io.Closer
}

// Config selects and parameterises a backend.
type Config struct {
	Backend     string // gpiocdev, periph, rpio or firmata
	Chip        string // gpiocdev chip, e.g. "gpiochip0"
	FirmataPort string
	FirmataBaud int
}

// ErrUnknownBackend is returned by Open for a backend name it does not know.
var ErrUnknownBackend = errors.New("unknown output backend")

// ErrNoSuchPin is returned when a backend cannot resolve a pin number.
var ErrNoSuchPin = errors.New("no such pin")

type opener func(cfg Config) (Sink, error)

var backends = map[string]opener{
	"gpiocdev": func(cfg Config) (Sink, error) { return NewCdev(cfg.Chip), nil },
	"periph":   func(Config) (Sink, error) { return NewPeriph() },
	"rpio":     func(Config) (Sink, error) { return NewRPIO() },
	"firmata":  func(cfg Config) (Sink, error) { return NewFirmata(cfg.FirmataPort, cfg.FirmataBaud) },
}

// Backends lists the backend names Open accepts.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the sink named by cfg.Backend.
func Open(cfg Config) (Sink, error) {
	open, ok := backends[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	s, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s outputs: %w", cfg.Backend, err)
	}
	core.DebugPrintln("outputs: opened " + cfg.Backend)
	return s, nil
}

func level(v bool) int {
	if v {
		return 1
	}
	return 0
}
