package core

import "math"

// profile is the step loop's private planning state.
type profile struct {
	params       *KinematicParams
	dir          Direction
	target       int64 // raw leg target
	decelerating bool
	decelAt      int64

	stepSpeed float64 // speed of the last executed step
	nextSpeed float64 // speed the pending delay was computed for
	prevSpeed float64

	legStart  float64 // virtual time zero of the ramp, µs
	nextDelay float64 // ms
	lastStep  uint64  // µs
}

// adopt switches to new kinematic parameters, keeping the speed state
// inside the new bounds.
func (m *Motor) adopt(p *KinematicParams, now uint64) {
	m.plan.params = p
	m.plan.stepSpeed = p.clampSpeed(m.plan.stepSpeed)
	m.plan.nextSpeed = p.clampSpeed(m.plan.nextSpeed)
	m.plan.prevSpeed = p.clampSpeed(m.plan.prevSpeed)
	m.speed.Store(math.Float64bits(m.plan.stepSpeed))
	m.timing.Record(EvtParams, now, int64(p.VMin*1000), int64(p.VMax*1000))
}

// replan decides the direction of travel and where the current leg must
// start decelerating, then refreshes the ramp origin and the next delay.
func (m *Motor) replan(now uint64) {
	p := m.plan.params
	pos := m.exec.pos
	remaining := m.plan.target - pos

	if remaining == 0 && (m.plan.dir == Idle || !p.Smoothing) {
		m.setDirection(Idle)
		m.setDecelerating(false)
		return
	}

	want := directionOf(remaining)
	switch {
	case m.plan.dir == Idle || !p.Smoothing:
		m.setDirection(want)
	case want == m.plan.dir:
	default:
		// Reversal or stop while moving: finish this leg at VMin first.
		m.timing.Record(EvtReversal, now, pos, m.plan.target)
		m.setDecelAt(pos)
		m.setDecelerating(true)
		m.plan.legStart = m.startTime(now)
		m.setDelay(m.delay(now))
		return
	}

	dir := int64(m.plan.dir)
	if !p.Smoothing {
		m.setDecelerating(false)
		m.setDecelAt(m.plan.target - dir)
	} else {
		dist := abs64(remaining)
		toVmin, toVmax := m.rampDistances()

		if dist <= toVmin {
			m.setDecelAt(pos)
			m.setDecelerating(true)
		} else {
			m.setDecelerating(false)
			spare := dist - toVmax - p.RampSteps
			switch {
			case spare == 0:
				// accelerate to VMax and brake straight away
				m.setDecelAt(pos + dir*(toVmax-1))
			case spare > 0:
				// cruise at VMax, brake one ramp before the target
				m.setDecelAt(m.plan.target - dir*(p.RampSteps+1))
			default:
				// VMax is out of reach: peak half way
				m.setDecelAt(pos + dir*((dist-toVmin)/2))
			}
		}
	}

	m.timing.Record(EvtReplan, now, m.plan.decelAt, remaining)
	m.plan.legStart = m.startTime(now)
	m.setDelay(m.delay(now))
}

// rampDistances returns the steps needed to slow from the current speed to
// VMin and to speed up from it to VMax.
func (m *Motor) rampDistances() (toVmin, toVmax int64) {
	p := m.plan.params
	v := m.plan.stepSpeed

	tMin := (p.VMin - v) / -p.Acc
	tMax := (p.VMax - v) / p.Acc
	toVmin = int64(-p.Acc/2*tMin*tMin + v*tMin + 1)
	toVmax = int64(p.Acc/2*tMax*tMax + v*tMax + 1)
	return abs64(toVmin), abs64(toVmax)
}

// startTime places the ramp's time origin so that evaluating the ramp now
// continues from the speed of the pending step.
func (m *Motor) startTime(now uint64) float64 {
	p := m.plan.params
	if !p.Smoothing {
		return float64(now)
	}
	if m.plan.nextSpeed == 0 {
		m.plan.nextSpeed = p.VMin
	}

	var t float64
	if m.plan.decelerating {
		t = (m.plan.nextSpeed-p.VMax)/-p.Acc + 1/m.plan.prevSpeed
	} else {
		t = (m.plan.nextSpeed-p.VMin)/p.Acc + 1/m.plan.prevSpeed
	}
	if t < 0 {
		t = 0
	}
	return float64(now) - t*1000
}

// delay returns the time in ms to wait before the next step.
func (m *Motor) delay(now uint64) float64 {
	p := m.plan.params
	if !p.Smoothing {
		return p.StepDelay()
	}

	m.plan.prevSpeed = m.plan.nextSpeed
	t := (float64(now) - m.plan.legStart) / 1000

	var v float64
	if m.plan.decelerating {
		v = p.VMax - p.Acc*t
	} else {
		v = p.VMin + p.Acc*t
	}
	m.plan.nextSpeed = p.clampSpeed(v)
	return 1 / m.plan.nextSpeed
}

func (m *Motor) setDirection(d Direction) {
	m.plan.dir = d
	m.direction.Store(int32(d))
}

func (m *Motor) setDecelerating(b bool) {
	m.plan.decelerating = b
	m.decel.Store(b)
}

func (m *Motor) setDecelAt(pos int64) {
	m.plan.decelAt = pos
	m.decelAt.Store(pos)
}

func (m *Motor) setDelay(ms float64) {
	m.plan.nextDelay = ms
	m.nextDelay.Store(math.Float64bits(ms))
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
