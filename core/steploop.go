package core

import (
	"context"
	"math"
	"runtime"
)

// pollsPerContextCheck bounds how often Run looks at its context.
const pollsPerContextCheck = 1024

// Run executes the step loop until ctx is cancelled. It spins; give it a
// goroutine (or core) of its own.
func (m *Motor) Run(ctx context.Context) error {
	if m.params.Load() == nil {
		return ErrNotConfigured
	}

	done := ctx.Done()
	for i := 0; ; i++ {
		if i%pollsPerContextCheck == 0 {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
		}

		m.Poll(m.clock.Micros())

		if m.plan.dir == Idle {
			runtime.Gosched()
		}
	}
}

// Poll runs one iteration of the step loop at time now (µs): merge new
// commands, replan when needed, and take at most one step when its delay
// has elapsed. It must only be called from the loop's own goroutine.
func (m *Motor) Poll(now uint64) {
	p := m.params.Load()
	if p == nil {
		return
	}

	replan := false
	if p != m.plan.params {
		m.adopt(p, now)
		replan = true
	}
	if seq := m.requests.Load(); seq != m.merged.Load() {
		m.merged.Store(seq)
		m.plan.target = m.target.Load()
		m.legTarget.Store(m.plan.target)
		m.timing.Record(EvtMerge, now, m.plan.target, m.exec.pos)
		replan = true
	}
	if replan {
		m.replan(now)
		if m.plan.dir == Idle {
			m.notifyIdle()
		}
	}

	if m.plan.dir == Idle && m.plan.target == m.exec.pos {
		return
	}
	if float64(now-m.plan.lastStep) < m.plan.nextDelay*1000 {
		return
	}

	m.plan.stepSpeed = m.plan.nextSpeed
	pos := m.exec.step(m.plan.dir)
	m.plan.lastStep = now
	m.position.Store(pos)
	m.speed.Store(math.Float64bits(m.plan.stepSpeed))
	m.steps.Add(1)

	switch {
	case !p.Smoothing && pos == m.plan.target:
		m.settle(now)
	case p.Smoothing && m.plan.decelerating && m.plan.stepSpeed == p.VMin:
		m.settle(now)
	case m.plan.decelerating:
		m.setDelay(m.delay(now))
	default:
		if int64(m.plan.dir)*pos >= int64(m.plan.dir)*m.plan.decelAt {
			m.setDecelerating(true)
			m.timing.Record(EvtDecelStart, now, pos, int64(m.plan.stepSpeed*1000))
			m.plan.legStart = m.startTime(now)
		}
		m.setDelay(m.delay(now))
	}
}

// settle ends a leg: the motor is idle until the replan finds distance left.
func (m *Motor) settle(now uint64) {
	m.timing.Record(EvtSettle, now, m.exec.pos, m.plan.target)
	m.setDirection(Idle)
	m.setDecelerating(false)
	m.replan(now)
	if m.plan.dir == Idle {
		m.notifyIdle()
	}
}
