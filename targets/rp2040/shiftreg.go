//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers/shiftregister"

	"smoothstep/core"
)

// ShiftRegDriver drives coils through a chain of 74HC595s. Output n of the
// chain is pin n; up to 32 outputs.
type ShiftRegDriver struct {
	dev    *shiftregister.Device
	mask   uint32
	claims core.PinClaims
}

func NewShiftRegDriver(bits shiftregister.NumberBit, latch, clock, data machine.Pin) *ShiftRegDriver {
	dev := shiftregister.New(bits, latch, clock, data)
	dev.Configure()
	dev.WriteMask(0)
	return &ShiftRegDriver{dev: dev}
}

func (d *ShiftRegDriver) ConfigureOutput(pin core.GPIOPin) error {
	if pin > 31 {
		return &core.PinError{Pin: pin, Err: errNoSuchPin}
	}
	return d.claims.Claim(pin)
}

func (d *ShiftRegDriver) SetPin(pin core.GPIOPin, value bool) error {
	d.set(pin, value)
	d.dev.WriteMask(d.mask)
	return nil
}

// WritePattern latches all of a motor's lines in one shift.
func (d *ShiftRegDriver) WritePattern(pins []core.GPIOPin, levels []bool) error {
	for i, pin := range pins {
		d.set(pin, levels[i])
	}
	d.dev.WriteMask(d.mask)
	return nil
}

func (d *ShiftRegDriver) set(pin core.GPIOPin, value bool) {
	if value {
		d.mask |= 1 << pin
	} else {
		d.mask &^= 1 << pin
	}
}
