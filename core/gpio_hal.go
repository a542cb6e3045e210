package core

import (
	"errors"
	"sync"
)

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

var (
	ErrPinInUse     = errors.New("pin already claimed by another motor")
	ErrPinCount     = errors.New("pin count does not match wiring mode")
	ErrDuplicatePin = errors.New("pin listed more than once")
)

// GPIODriver is the digital output sink a motor renders its phase patterns to.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output.
	// Returns ErrPinInUse if another motor already owns the pin.
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error
}

// OutputGroupConfigurer is implemented by drivers that claim every line of a
// motor in a single request.
type OutputGroupConfigurer interface {
	ConfigureOutputs(pins []GPIOPin) error
}

// PatternWriter is implemented by drivers that can switch all coil lines of
// a motor in one write.
type PatternWriter interface {
	WritePattern(pins []GPIOPin, levels []bool) error
}

// configureOutputs claims the motor's pins on the driver, preferring a
// group request when the driver supports one.
func configureOutputs(d GPIODriver, pins []GPIOPin) error {
	if g, ok := d.(OutputGroupConfigurer); ok {
		return g.ConfigureOutputs(pins)
	}
	for _, pin := range pins {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
	}
	return nil
}

// PinClaims tracks exclusive pin ownership for a driver.
type PinClaims struct {
	mu    sync.Mutex
	owned map[GPIOPin]struct{}
}

// Claim takes ownership of all pins or none of them.
func (c *PinClaims) Claim(pins ...GPIOPin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.owned == nil {
		c.owned = make(map[GPIOPin]struct{})
	}
	for i, pin := range pins {
		if _, taken := c.owned[pin]; taken {
			return &PinError{Pin: pin, Err: ErrPinInUse}
		}
		for _, other := range pins[:i] {
			if other == pin {
				return &PinError{Pin: pin, Err: ErrDuplicatePin}
			}
		}
	}
	for _, pin := range pins {
		c.owned[pin] = struct{}{}
	}
	return nil
}

// Release gives pins back.
func (c *PinClaims) Release(pins ...GPIOPin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pin := range pins {
		delete(c.owned, pin)
	}
}

// Owned reports whether pin is currently claimed.
func (c *PinClaims) Owned(pin GPIOPin) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.owned[pin]
	return ok
}

// PinError attaches the offending pin to a pin error.
type PinError struct {
	Pin GPIOPin
	Err error
}

func (e *PinError) Error() string {
	return "gpio" + utoa(uint32(e.Pin)) + ": " + e.Err.Error()
}

func (e *PinError) Unwrap() error {
	return e.Err
}
