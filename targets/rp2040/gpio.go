//go:build rp2040

package main

import (
	"machine"

	"smoothstep/core"
)

// RPGPIODriver drives coil lines from the SIO registers.
type RPGPIODriver struct {
	claims core.PinClaims
}

func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{}
}

// ConfigureOutput configures a pin as a digital output, driven low.
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if pin > 29 {
		return &core.PinError{Pin: pin, Err: errNoSuchPin}
	}
	if err := d.claims.Claim(pin); err != nil {
		return err
	}
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machine.Pin(pin).Set(value)
	return nil
}
