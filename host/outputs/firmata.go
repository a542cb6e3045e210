package outputs

import (
	"errors"
	"sync"

	firmata "github.com/kraman/go-firmata"

	"smoothstep/core"
)

// DefaultFirmataBaud is the StandardFirmata sketch's rate.
const DefaultFirmataBaud = 57600

var errPinRange = errors.New("firmata pins are 0-255")

// FirmataSink drives the digital pins of a board running StandardFirmata.
// Every write is a serial message, so step rates are limited by the link.
type FirmataSink struct {
	mu     sync.Mutex
	client *firmata.FirmataClient
	claims core.PinClaims
	pins   []uint8
}

// NewFirmata connects to the board on port.
func NewFirmata(port string, baud int) (*FirmataSink, error) {
	if baud <= 0 {
		baud = DefaultFirmataBaud
	}
	client, err := firmata.NewClient(port, baud)
	if err != nil {
		return nil, err
	}
	return &FirmataSink{client: client}, nil
}

func (s *FirmataSink) ConfigureOutput(pin core.GPIOPin) error {
	if pin > 255 {
		return &core.PinError{Pin: pin, Err: errPinRange}
	}
	if err := s.claims.Claim(pin); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.SetPinMode(uint8(pin), firmata.Output)
	s.client.DigitalWrite(uint8(pin), false)
	s.pins = append(s.pins, uint8(pin))
	return nil
}

func (s *FirmataSink) SetPin(pin core.GPIOPin, value bool) error {
	if !s.claims.Owned(pin) {
		return &core.PinError{Pin: pin, Err: ErrNoSuchPin}
	}
	s.mu.Lock()
	s.client.DigitalWrite(uint8(pin), value)
	s.mu.Unlock()
	return nil
}

// Close drives every claimed pin low and closes the serial link.
func (s *FirmataSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pin := range s.pins {
		s.client.DigitalWrite(pin, false)
		s.claims.Release(core.GPIOPin(pin))
	}
	s.pins = nil
	s.client.Close()
	return nil
}
