package core

import (
	"context"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	uuid "github.com/satori/go.uuid"
)

// Version is the motion library revision reported to hosts.
const Version = 6

// Direction of travel.
type Direction int8

const (
	Reverse Direction = -1
	Idle    Direction = 0
	Forward Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	}
	return "idle"
}

func directionOf(n int64) Direction {
	switch {
	case n > 0:
		return Forward
	case n < 0:
		return Reverse
	}
	return Idle
}

// MotorConfig is fixed at construction.
type MotorConfig struct {
	Wiring             WiringMode
	StepsPerRevolution int64
	Pins               []GPIOPin // pin 1 first, one per wire
}

func (c MotorConfig) validate() error {
	if !c.Wiring.Valid() {
		return ErrUnsupportedWiring
	}
	if c.StepsPerRevolution <= 0 {
		return ErrStepsPerRevolution
	}
	if len(c.Pins) != c.Wiring.Pins() {
		return ErrPinCount
	}
	for i, pin := range c.Pins {
		for _, other := range c.Pins[:i] {
			if other == pin {
				return &PinError{Pin: pin, Err: ErrDuplicatePin}
			}
		}
	}
	return nil
}

// Motor drives one stepper. The Command Surface methods may be called from
// any goroutine; Poll and Run belong to a single step loop.
//
// Fields shared between the two sides are individual atomics with one
// writer each. Readers may observe a mix of values from consecutive loop
// iterations.
type Motor struct {
	id     string
	config MotorConfig
	clock  Clock
	exec   *executor

	params atomic.Pointer[KinematicParams]

	// written by the Command Surface
	target   atomic.Int64 // raw steps
	requests atomic.Uint64
	origin   atomic.Int64

	// written by the step loop
	position  atomic.Int64
	direction atomic.Int32
	merged    atomic.Uint64
	legTarget atomic.Int64
	decel     atomic.Bool
	decelAt   atomic.Int64
	speed     atomic.Uint64 // float64 bits
	nextDelay atomic.Uint64 // float64 bits
	steps     atomic.Uint64

	plan   profile
	timing TimingRing

	idleMu sync.Mutex
	idleCh chan struct{}
}

// NewMotor validates cfg, claims its pins on out, and returns an idle motor
// at position zero. The motor has no speed until ConfigureAcceleration or
// DisableAcceleration is called. A nil clock selects SystemClock.
func NewMotor(cfg MotorConfig, out GPIODriver, clock Clock) (*Motor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock()
	}

	pins := make([]GPIOPin, len(cfg.Pins))
	copy(pins, cfg.Pins)
	cfg.Pins = pins

	if err := configureOutputs(out, pins); err != nil {
		return nil, err
	}

	return &Motor{
		id:     uuid.NewV4().String(),
		config: cfg,
		clock:  clock,
		exec:   newExecutor(cfg.Wiring, pins, out),
	}, nil
}

// ID returns an opaque identifier unique to this motor.
func (m *Motor) ID() string { return m.id }

// Config returns the construction-time configuration.
func (m *Motor) Config() MotorConfig { return m.config }

// Clock returns the time source the step loop uses.
func (m *Motor) Clock() Clock { return m.clock }

// Params returns the active kinematic parameters, or nil if unconfigured.
func (m *Motor) Params() *KinematicParams { return m.params.Load() }

// ConfigureAcceleration enables the trapezoidal ramp. Speeds are in rev/min
// and the ramp in ms. On error the motor is left exactly as it was.
func (m *Motor) ConfigureAcceleration(minRPM, maxRPM float64, rampMs int64) error {
	p, err := NewKinematicParams(m.config.StepsPerRevolution, minRPM, maxRPM, rampMs)
	if err != nil {
		return err
	}
	m.params.Store(p)
	DebugPrintln("motor " + m.id + ": ramp vmin=" + ftoa(p.VMin) + " vmax=" + ftoa(p.VMax) + " steps/ms")
	return nil
}

// DisableAcceleration switches to constant-speed stepping at rpm.
// A zero speed runs at MinConstantSpeed.
func (m *Motor) DisableAcceleration(rpm float64) {
	p := NewConstantSpeed(m.config.StepsPerRevolution, rpm)
	m.params.Store(p)
	DebugPrintln("motor " + m.id + ": constant speed " + ftoa(p.VMin) + " steps/ms")
}

// MoveRelative adds delta steps to the target.
func (m *Motor) MoveRelative(delta int64) {
	m.target.Add(delta)
	m.requests.Add(1)
}

// MoveAbsolute sets the target position and forces a replan.
func (m *Motor) MoveAbsolute(target int64) {
	m.target.Store(target + m.origin.Load())
	m.requests.Add(1)
}

// Stop brings the motor to rest at the position it had when Stop was
// called. The ramp is still obeyed, so the motor may travel past that
// position while decelerating and then step back onto it.
func (m *Motor) Stop() {
	m.target.Store(m.position.Load())
	m.requests.Add(1)
}

// ReturnToOrigin moves back to position zero. With includeRevolutions false
// only the offset within the current revolution is undone.
func (m *Motor) ReturnToOrigin(includeRevolutions bool) {
	offset := m.Position()
	if !includeRevolutions {
		offset %= m.config.StepsPerRevolution
	}
	m.MoveRelative(-offset)
}

// ResetOrigin busy-waits until the motor is idle, then makes the current
// position zero. Callers must not issue motion concurrently.
func (m *Motor) ResetOrigin() {
	m.WaitUntilIdle()
	m.origin.Store(m.position.Load())
}

// ResetOriginContext is ResetOrigin with a blocking wait instead of a poll.
func (m *Motor) ResetOriginContext(ctx context.Context) error {
	if err := m.WaitIdle(ctx); err != nil {
		return err
	}
	m.origin.Store(m.position.Load())
	return nil
}

// TryResetOrigin resets the origin if the motor is idle, otherwise it
// returns ErrMotorBusy.
func (m *Motor) TryResetOrigin() error {
	if m.IsMoving() {
		return ErrMotorBusy
	}
	m.origin.Store(m.position.Load())
	return nil
}

// IsMoving reports whether the motor is travelling or has a command the
// step loop has not merged yet.
func (m *Motor) IsMoving() bool {
	if m.requests.Load() != m.merged.Load() {
		return true
	}
	if m.target.Load() != m.position.Load() {
		return true
	}
	return Direction(m.direction.Load()) != Idle
}

// WaitUntilIdle polls IsMoving until it turns false.
func (m *Motor) WaitUntilIdle() {
	for m.IsMoving() {
		runtime.Gosched()
	}
}

// WaitIdle blocks until the step loop reports the motor idle or ctx ends.
func (m *Motor) WaitIdle(ctx context.Context) error {
	for {
		m.idleMu.Lock()
		if !m.IsMoving() {
			m.idleMu.Unlock()
			return nil
		}
		if m.idleCh == nil {
			m.idleCh = make(chan struct{})
		}
		ch := m.idleCh
		m.idleMu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Motor) notifyIdle() {
	m.idleMu.Lock()
	if m.idleCh != nil {
		close(m.idleCh)
		m.idleCh = nil
	}
	m.idleMu.Unlock()
}

// Release drives every coil line low. The next step re-energises the
// current phase.
func (m *Motor) Release() error {
	if m.IsMoving() {
		return ErrMotorBusy
	}
	m.exec.release()
	return nil
}

// Position is the signed step count relative to the origin.
func (m *Motor) Position() int64 {
	return m.position.Load() - m.origin.Load()
}

// Target is the requested position relative to the origin.
func (m *Motor) Target() int64 {
	return m.target.Load() - m.origin.Load()
}

// CurrentStepNumber is the position within the current revolution.
func (m *Motor) CurrentStepNumber() int64 {
	return m.Position() % m.config.StepsPerRevolution
}

// CurrentRevolutionCount is the number of whole revolutions from the origin.
func (m *Motor) CurrentRevolutionCount() int64 {
	return m.Position() / m.config.StepsPerRevolution
}

// OutputFaults counts sink errors seen while stepping.
func (m *Motor) OutputFaults() uint32 {
	return m.exec.faults.Load()
}

// Timing returns the motor's event ring. Read it only while the step loop
// is stopped.
func (m *Motor) Timing() *TimingRing {
	return &m.timing
}

// DumpTiming writes the event ring through the debug writer.
func (m *Motor) DumpTiming() {
	m.timing.Dump("motor " + m.id)
}

// Snapshot is a point-in-time view of a motor for monitoring.
type Snapshot struct {
	ID                    string
	Position              int64
	Target                int64
	Pending               int64 // requested but not yet merged by the loop
	Direction             Direction
	Decelerating          bool
	DecelerationThreshold int64
	Speed                 float64 // steps/ms of the last step
	NextDelay             float64 // ms
	Smoothing             bool
	Moving                bool
	Steps                 uint64
	OutputFaults          uint32
}

// Snapshot gathers the published state. Fields are read one by one.
func (m *Motor) Snapshot() Snapshot {
	origin := m.origin.Load()
	target := m.target.Load()
	s := Snapshot{
		ID:                    m.id,
		Position:              m.position.Load() - origin,
		Target:                target - origin,
		Pending:               target - m.legTarget.Load(),
		Direction:             Direction(m.direction.Load()),
		Decelerating:          m.decel.Load(),
		DecelerationThreshold: m.decelAt.Load() - origin,
		Speed:                 math.Float64frombits(m.speed.Load()),
		NextDelay:             math.Float64frombits(m.nextDelay.Load()),
		Moving:                m.IsMoving(),
		Steps:                 m.steps.Load(),
		OutputFaults:          m.exec.faults.Load(),
	}
	if p := m.params.Load(); p != nil {
		s.Smoothing = p.Smoothing
	}
	return s
}
