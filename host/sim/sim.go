// Package sim runs a motor against a virtual clock and records every step.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"smoothstep/core"
)

// ErrTimeout is returned when a wait outlasts the simulator's time limit.
var ErrTimeout = errors.New("simulation time limit reached")

// DefaultTick is the virtual time between loop iterations.
const DefaultTick = 50 * time.Microsecond

// Sample is the state right after one step.
type Sample struct {
	Time      uint64 // µs
	Position  int64
	Target    int64
	Speed     float64        // steps/ms
	Direction core.Direction // of this step
	Pattern   string         // coil levels, pin 1 first
}

// Leg is a span from leaving idle to returning to it.
type Leg struct {
	Start, End uint64 // µs
	From, To   int64
	Steps      int
	Reversals  int
	PeakSpeed  float64 // steps/ms
}

// Duration of the leg.
func (l Leg) Duration() time.Duration {
	return time.Duration(l.End-l.Start) * time.Microsecond
}

// Simulator owns one motor and its virtual clock. It is not safe for
// concurrent use.
type Simulator struct {
	Motor *core.Motor
	Limit time.Duration // virtual time a single wait may take

	clock *core.ManualClock
	out   *recorder
	tick  uint64

	samples []Sample
	legs    []Leg
	leg     *Leg
	steps   uint64
}

// New builds a simulated motor. A zero tick selects DefaultTick.
func New(cfg core.MotorConfig, tick time.Duration) (*Simulator, error) {
	if tick <= 0 {
		tick = DefaultTick
	}
	out := &recorder{levels: make(map[core.GPIOPin]bool)}
	clock := core.NewManualClock(0)
	m, err := core.NewMotor(cfg, out, clock)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		Motor: m,
		Limit: 10 * time.Minute,
		clock: clock,
		out:   out,
		tick:  uint64(tick / time.Microsecond),
	}, nil
}

// Now is the virtual time in µs.
func (s *Simulator) Now() uint64 { return s.clock.Micros() }

// Samples returns every recorded step.
func (s *Simulator) Samples() []Sample { return s.samples }

// Legs returns the completed legs.
func (s *Simulator) Legs() []Leg { return s.legs }

// Poll advances the clock one tick and runs one loop iteration.
func (s *Simulator) Poll() {
	before := s.Motor.Position()
	now := s.clock.Advance(s.tick)
	s.Motor.Poll(now)

	snap := s.Motor.Snapshot()
	if snap.Steps != s.steps {
		s.steps = snap.Steps
		s.record(now, before, snap)
	}
	if s.leg != nil && !snap.Moving {
		s.leg.End = now
		s.leg.To = snap.Position
		s.legs = append(s.legs, *s.leg)
		s.leg = nil
	}
}

func (s *Simulator) record(now uint64, before int64, snap core.Snapshot) {
	dir := core.Forward
	if snap.Position < before {
		dir = core.Reverse
	}
	if s.leg == nil {
		s.leg = &Leg{Start: now, From: before}
	} else if n := len(s.samples); n > 0 && s.samples[n-1].Direction != dir {
		s.leg.Reversals++
	}
	s.leg.Steps++
	if snap.Speed > s.leg.PeakSpeed {
		s.leg.PeakSpeed = snap.Speed
	}

	s.samples = append(s.samples, Sample{
		Time:      now,
		Position:  snap.Position,
		Target:    snap.Target,
		Speed:     snap.Speed,
		Direction: dir,
		Pattern:   s.out.pattern(s.Motor.Config().Pins),
	})
}

// Run polls for d of virtual time.
func (s *Simulator) Run(d time.Duration) {
	end := s.Now() + uint64(d/time.Microsecond)
	for s.Now() < end {
		s.Poll()
	}
}

// WaitIdle polls until the motor is idle.
func (s *Simulator) WaitIdle(ctx context.Context) error {
	limit := s.Now() + uint64(s.Limit/time.Microsecond)
	for i := 0; s.Motor.IsMoving(); i++ {
		if s.Now() >= limit {
			return ErrTimeout
		}
		if i%4096 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		s.Poll()
	}
	return nil
}

// Sleep is Run with a context check.
func (s *Simulator) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Run(d)
	return nil
}

func (s *Simulator) MoveRelative(delta int64) error {
	s.Motor.MoveRelative(delta)
	return nil
}

func (s *Simulator) MoveAbsolute(target int64) error {
	s.Motor.MoveAbsolute(target)
	return nil
}

func (s *Simulator) Stop() error {
	s.Motor.Stop()
	return nil
}

func (s *Simulator) ReturnToOrigin(includeRevolutions bool) error {
	s.Motor.ReturnToOrigin(includeRevolutions)
	return nil
}

// ResetOrigin runs the motor to idle and zeroes it.
func (s *Simulator) ResetOrigin(ctx context.Context) error {
	if err := s.WaitIdle(ctx); err != nil {
		return err
	}
	return s.Motor.TryResetOrigin()
}

func (s *Simulator) ConfigureAcceleration(minRPM, maxRPM float64, rampMs int64) error {
	return s.Motor.ConfigureAcceleration(minRPM, maxRPM, rampMs)
}

func (s *Simulator) DisableAcceleration(rpm float64) error {
	s.Motor.DisableAcceleration(rpm)
	return nil
}

// recorder is the simulated coil driver.
type recorder struct {
	mu     sync.Mutex
	claims core.PinClaims
	levels map[core.GPIOPin]bool
}

func (r *recorder) ConfigureOutput(pin core.GPIOPin) error {
	return r.claims.Claim(pin)
}

func (r *recorder) SetPin(pin core.GPIOPin, value bool) error {
	r.mu.Lock()
	r.levels[pin] = value
	r.mu.Unlock()
	return nil
}

func (r *recorder) WritePattern(pins []core.GPIOPin, levels []bool) error {
	r.mu.Lock()
	for i, pin := range pins {
		r.levels[pin] = levels[i]
	}
	r.mu.Unlock()
	return nil
}

func (r *recorder) pattern(pins []core.GPIOPin) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, len(pins))
	for i, pin := range pins {
		b[i] = '0'
		if r.levels[pin] {
			b[i] = '1'
		}
	}
	return string(b)
}
