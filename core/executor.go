package core

import "sync/atomic"

// executor turns one step into a phase change on the motor's output lines.
// Only the step loop calls step; it never fails, sink errors are counted.
type executor struct {
	wiring WiringMode
	pins   []GPIOPin
	out    GPIODriver
	batch  PatternWriter
	levels []bool

	phase int
	pos   int64 // raw position, mirrored into Motor.position by the loop

	faults atomic.Uint32
}

func newExecutor(wiring WiringMode, pins []GPIOPin, out GPIODriver) *executor {
	e := &executor{
		wiring: wiring,
		pins:   pins,
		out:    out,
		levels: make([]bool, len(pins)),
	}
	if pw, ok := out.(PatternWriter); ok {
		e.batch = pw
	}
	return e
}

// step moves one unit in dir and renders the new phase.
func (e *executor) step(dir Direction) int64 {
	n := e.wiring.PhaseCount()
	e.phase = (e.phase + int(dir) + n) % n
	e.pos += int64(dir)
	PhaseLevels(e.wiring, e.phase, e.levels)
	e.write(e.levels)
	return e.pos
}

// release de-energises every line without touching the phase index.
func (e *executor) release() {
	e.write(make([]bool, len(e.pins)))
}

func (e *executor) write(levels []bool) {
	if e.batch != nil {
		if err := e.batch.WritePattern(e.pins, levels); err != nil {
			e.fault(err)
		}
		return
	}
	for i, pin := range e.pins {
		if err := e.out.SetPin(pin, levels[i]); err != nil {
			e.fault(err)
		}
	}
}

func (e *executor) fault(err error) {
	n := e.faults.Add(1)
	DebugAsync("output fault #" + utoa(n) + ": " + err.Error())
}
