package core

// WiringMode is the number of control lines driving the motor coils.
type WiringMode uint8

const (
	TwoWire  WiringMode = 2
	FourWire WiringMode = 4
	FiveWire WiringMode = 5
)

// Phase tables, written C0 first: the leftmost bit drives the first pin.
//
// Two-wire drivers invert the signals in hardware, so only columns C1 and C2
// of the four-wire sequence are emitted.
var (
	twoWirePhases = [...]uint8{
		0b01,
		0b11,
		0b10,
		0b00,
	}
	fourWirePhases = [...]uint8{
		0b1010,
		0b0110,
		0b0101,
		0b1001,
	}
	fiveWirePhases = [...]uint8{
		0b01101,
		0b01001,
		0b01011,
		0b01010,
		0b11010,
		0b10010,
		0b10110,
		0b10100,
		0b10101,
		0b00101,
	}
)

// Valid reports whether w is a supported wiring mode.
func (w WiringMode) Valid() bool {
	return w == TwoWire || w == FourWire || w == FiveWire
}

// Pins returns the number of output lines for the mode.
func (w WiringMode) Pins() int {
	return int(w)
}

// PhaseCount returns the length of the commutation cycle.
func (w WiringMode) PhaseCount() int {
	switch w {
	case TwoWire:
		return len(twoWirePhases)
	case FourWire:
		return len(fourWirePhases)
	case FiveWire:
		return len(fiveWirePhases)
	}
	return 0
}

func (w WiringMode) String() string {
	switch w {
	case TwoWire:
		return "2-wire"
	case FourWire:
		return "4-wire"
	case FiveWire:
		return "5-wire"
	}
	return "wiring(" + utoa(uint32(w)) + ")"
}

// PhasePattern returns the raw bit pattern for a phase index, C0 in the most
// significant of the mode's bits. The index is reduced modulo the cycle length.
func PhasePattern(w WiringMode, index int) uint8 {
	var table []uint8
	switch w {
	case TwoWire:
		table = twoWirePhases[:]
	case FourWire:
		table = fourWirePhases[:]
	case FiveWire:
		table = fiveWirePhases[:]
	default:
		return 0
	}
	n := len(table)
	return table[((index%n)+n)%n]
}

// PhaseLevels expands a phase into one level per pin, pin 1 first.
// levels must hold at least w.Pins() entries.
func PhaseLevels(w WiringMode, index int, levels []bool) {
	pattern := PhasePattern(w, index)
	n := w.Pins()
	for i := 0; i < n; i++ {
		levels[i] = pattern&(1<<(n-1-i)) != 0
	}
}
