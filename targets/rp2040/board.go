//go:build rp2040

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/shiftregister"

	"smoothstep/core"
)

var errNoSuchPin = errors.New("no such pin")

// sinkKind selects how a motor's coil lines are driven.
type sinkKind uint8

const (
	sinkGPIO sinkKind = iota
	sinkPIO
	sinkShiftReg
)

// motorSpec is one motor compiled into the firmware. Its oid is its index.
type motorSpec struct {
	core.MotorConfig
	Sink sinkKind

	// trapezoidal ramp; zero MaxRPM selects ConstantRPM
	MinRPM, MaxRPM float64
	RampMs         int64
	ConstantRPM    float64
}

// board wires two 28BYJ-48s on ULN2003 boards and a 5-wire motor behind
// a pair of 74HC595s.
var board = []motorSpec{
	{
		MotorConfig: core.MotorConfig{Wiring: core.FourWire, StepsPerRevolution: 2048, Pins: []core.GPIOPin{2, 3, 4, 5}},
		Sink:        sinkPIO,
		MinRPM:      3, MaxRPM: 15, RampMs: 500,
	},
	{
		MotorConfig: core.MotorConfig{Wiring: core.FourWire, StepsPerRevolution: 2048, Pins: []core.GPIOPin{10, 11, 12, 13}},
		Sink:        sinkGPIO,
		MinRPM:      3, MaxRPM: 15, RampMs: 500,
	},
	{
		MotorConfig: core.MotorConfig{Wiring: core.FiveWire, StepsPerRevolution: 500, Pins: []core.GPIOPin{0, 1, 2, 3, 4}},
		Sink:        sinkShiftReg,
		ConstantRPM: 30,
	},
}

// shift register chain
const (
	srLatch = machine.GP16
	srClock = machine.GP17
	srData  = machine.GP18
)

// buildMotors constructs every motor on its sink and applies its speed mode.
func buildMotors(clock core.Clock) ([]*core.Motor, error) {
	gpio := NewRPGPIODriver()
	var shift *ShiftRegDriver
	nextSM := uint8(0)

	motors := make([]*core.Motor, 0, len(board))
	for _, spec := range board {
		var out core.GPIODriver
		switch spec.Sink {
		case sinkPIO:
			out = NewPIOPatternDriver(nextSM/4, nextSM%4)
			nextSM++
		case sinkShiftReg:
			if shift == nil {
				shift = NewShiftRegDriver(shiftregister.SIXTEEN_BITS, srLatch, srClock, srData)
			}
			out = shift
		default:
			out = gpio
		}

		m, err := core.NewMotor(spec.MotorConfig, out, clock)
		if err != nil {
			return nil, err
		}
		if spec.MaxRPM > 0 {
			if err := m.ConfigureAcceleration(spec.MinRPM, spec.MaxRPM, spec.RampMs); err != nil {
				return nil, err
			}
		} else {
			m.DisableAcceleration(spec.ConstantRPM)
		}
		motors = append(motors, m)
	}
	return motors, nil
}
