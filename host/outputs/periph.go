package outputs

import (
	"strconv"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"smoothstep/core"
)

// PeriphSink drives pins through periph's GPIO registry. Pin n is looked up
// as "GPIOn".
type PeriphSink struct {
	claims core.PinClaims

	mu   sync.RWMutex
	pins map[core.GPIOPin]gpio.PinIO
}

// NewPeriph initialises the periph host drivers.
func NewPeriph() (*PeriphSink, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return &PeriphSink{pins: make(map[core.GPIOPin]gpio.PinIO)}, nil
}

func (s *PeriphSink) ConfigureOutput(pin core.GPIOPin) error {
	if err := s.claims.Claim(pin); err != nil {
		return err
	}
	p := gpioreg.ByName("GPIO" + strconv.FormatUint(uint64(pin), 10))
	if p == nil {
		s.claims.Release(pin)
		return &core.PinError{Pin: pin, Err: ErrNoSuchPin}
	}
	if err := p.Out(gpio.Low); err != nil {
		s.claims.Release(pin)
		return &core.PinError{Pin: pin, Err: err}
	}

	s.mu.Lock()
	s.pins[pin] = p
	s.mu.Unlock()
	return nil
}

func (s *PeriphSink) SetPin(pin core.GPIOPin, value bool) error {
	s.mu.RLock()
	p, ok := s.pins[pin]
	s.mu.RUnlock()
	if !ok {
		return &core.PinError{Pin: pin, Err: ErrNoSuchPin}
	}
	return p.Out(gpio.Level(value))
}

// Close drives every pin low and halts it.
func (s *PeriphSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for pin, p := range s.pins {
		err = multierr.Append(err, p.Out(gpio.Low))
		err = multierr.Append(err, p.Halt())
		s.claims.Release(pin)
		delete(s.pins, pin)
	}
	return err
}
