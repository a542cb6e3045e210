package outputs

import (
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"smoothstep/core"
)

// RPIOSink writes the Raspberry Pi GPIO registers through /dev/gpiomem.
// Register writes cannot fail once the memory is mapped.
type RPIOSink struct {
	claims core.PinClaims

	mu   sync.RWMutex
	pins map[core.GPIOPin]rpio.Pin
}

// NewRPIO maps the GPIO registers.
func NewRPIO() (*RPIOSink, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	return &RPIOSink{pins: make(map[core.GPIOPin]rpio.Pin)}, nil
}

func (s *RPIOSink) ConfigureOutput(pin core.GPIOPin) error {
	if err := s.claims.Claim(pin); err != nil {
		return err
	}
	p := rpio.Pin(pin)
	p.Output()
	p.Low()

	s.mu.Lock()
	s.pins[pin] = p
	s.mu.Unlock()
	return nil
}

func (s *RPIOSink) SetPin(pin core.GPIOPin, value bool) error {
	s.mu.RLock()
	p, ok := s.pins[pin]
	s.mu.RUnlock()
	if !ok {
		return &core.PinError{Pin: pin, Err: ErrNoSuchPin}
	}
	if value {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

// Close drives every pin low and unmaps the registers.
func (s *RPIOSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pin, p := range s.pins {
		p.Low()
		s.claims.Release(pin)
		delete(s.pins, pin)
	}
	return rpio.Close()
}
