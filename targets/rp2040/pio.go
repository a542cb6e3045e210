//go:build rp2040

package main

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"smoothstep/core"
)

var errNotConsecutive = errors.New("pio outputs need consecutive pins")

// buildPatternProgram loops pulling a word and shifting its low bits onto
// the out pins, so every coil line changes on the same PIO cycle.
func buildPatternProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestPins, 5).Encode(), // 1: out pins, 5
		// .wrap
	}
}

// PIOPatternDriver renders a motor's phase through one state machine.
// The motor's pins must be consecutive GPIOs, pin 1 lowest.
type PIOPatternDriver struct {
	pio  *rp2pio.PIO
	sm   rp2pio.StateMachine
	base machine.Pin
	n    uint8

	claims core.PinClaims
}

var patternOffsets = map[*rp2pio.PIO]uint8{}

// NewPIOPatternDriver uses state machine smNum of PIO block pioNum.
func NewPIOPatternDriver(pioNum, smNum uint8) *PIOPatternDriver {
	hw := rp2pio.PIO0
	if pioNum != 0 {
		hw = rp2pio.PIO1
	}
	return &PIOPatternDriver{pio: hw, sm: hw.StateMachine(smNum)}
}

func (d *PIOPatternDriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.ConfigureOutputs([]core.GPIOPin{pin})
}

// ConfigureOutputs hands the pins to the state machine and starts it.
func (d *PIOPatternDriver) ConfigureOutputs(pins []core.GPIOPin) error {
	for i, pin := range pins {
		if pin != pins[0]+core.GPIOPin(i) {
			return &core.PinError{Pin: pin, Err: errNotConsecutive}
		}
	}
	if err := d.claims.Claim(pins...); err != nil {
		return err
	}

	d.base = machine.Pin(pins[0])
	d.n = uint8(len(pins))
	d.sm.TryClaim()

	program := buildPatternProgram()
	offset, loaded := patternOffsets[d.pio]
	if !loaded {
		var err error
		offset, err = d.pio.AddProgram(program, -1)
		if err != nil {
			d.claims.Release(pins...)
			return err
		}
		patternOffsets[d.pio] = offset
	}

	for i := uint8(0); i < d.n; i++ {
		(d.base + machine.Pin(i)).Configure(machine.PinConfig{Mode: d.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(d.base, d.n)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1, 0)

	d.sm.Init(offset, cfg)
	d.sm.SetPindirsConsecutive(d.base, d.n, true)
	d.sm.SetPinsConsecutive(d.base, d.n, false)
	d.sm.SetEnabled(true)
	return nil
}

func (d *PIOPatternDriver) SetPin(pin core.GPIOPin, value bool) error {
	d.sm.SetPinsConsecutive(machine.Pin(pin), 1, value)
	return nil
}

// WritePattern queues one word; the FIFO drains in a few cycles.
func (d *PIOPatternDriver) WritePattern(pins []core.GPIOPin, levels []bool) error {
	var word uint32
	for i, high := range levels {
		if high {
			word |= 1 << (uint8(pins[i]) - uint8(d.base))
		}
	}
	for d.sm.IsTxFIFOFull() {
	}
	d.sm.TxPut(word)
	return nil
}
