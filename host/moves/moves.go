// Package moves parses and runs move scripts such as
//
//	rel:500 abs:-500 rel:2000 stop:300 zero home home:turns
//
// against a local motor, a remote one, or the simulator.
package moves

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Op is a script operation.
type Op uint8

const (
	OpRelative Op = iota // rel:N
	OpAbsolute           // abs:N
	OpRandom             // rand:N, a relative move in [-N, N]
	OpStop               // stop:MS, stop the preceding move after MS
	OpWait               // wait:MS
	OpZero               // zero
	OpHome               // home
	OpHomeTurns          // home:turns
	OpAccel              // accel:MIN/MAX/MS
	OpConstant           // const:RPM
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("bad move")

// Step is one parsed token.
type Step struct {
	Op     Op
	Steps  int64
	Delay  time.Duration
	MinRPM float64
	MaxRPM float64
	RampMs int64
	RPM    float64

	// Await makes the runner wait for the motor to go idle after the step.
	Await bool
}

func (s Step) String() string {
	switch s.Op {
	case OpRelative:
		return "rel:" + strconv.FormatInt(s.Steps, 10)
	case OpAbsolute:
		return "abs:" + strconv.FormatInt(s.Steps, 10)
	case OpRandom:
		return "rand:" + strconv.FormatInt(s.Steps, 10)
	case OpStop:
		return "stop:" + strconv.FormatInt(s.Delay.Milliseconds(), 10)
	case OpWait:
		return "wait:" + strconv.FormatInt(s.Delay.Milliseconds(), 10)
	case OpZero:
		return "zero"
	case OpHome:
		return "home"
	case OpHomeTurns:
		return "home:turns"
	case OpAccel:
		return "accel:" + formatFloat(s.MinRPM) + "/" + formatFloat(s.MaxRPM) + "/" + strconv.FormatInt(s.RampMs, 10)
	case OpConstant:
		return "const:" + formatFloat(s.RPM)
	}
	return "?"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Parse splits script on whitespace and parses each token.
func Parse(script string) ([]Step, error) {
	var steps []Step
	for _, tok := range strings.Fields(script) {
		s, err := parseToken(tok)
		if err != nil {
			return nil, err
		}
		if s.Op == OpStop {
			if len(steps) == 0 || !steps[len(steps)-1].moves() {
				return nil, fmt.Errorf("%w: %q must follow a move", ErrSyntax, tok)
			}
			steps[len(steps)-1].Await = false
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (s Step) moves() bool {
	switch s.Op {
	case OpRelative, OpAbsolute, OpRandom, OpHome, OpHomeTurns:
		return true
	}
	return false
}

func parseToken(tok string) (Step, error) {
	name, arg, hasArg := strings.Cut(tok, ":")
	bad := func() (Step, error) {
		return Step{}, fmt.Errorf("%w: %q", ErrSyntax, tok)
	}

	switch name {
	case "rel", "abs", "rand":
		n, err := strconv.ParseInt(arg, 10, 64)
		if !hasArg || err != nil {
			return bad()
		}
		op := map[string]Op{"rel": OpRelative, "abs": OpAbsolute, "rand": OpRandom}[name]
		if op == OpRandom && n <= 0 {
			return bad()
		}
		return Step{Op: op, Steps: n, Await: true}, nil

	case "stop", "wait":
		ms, err := strconv.ParseUint(arg, 10, 32)
		if !hasArg || err != nil {
			return bad()
		}
		s := Step{Op: OpWait, Delay: time.Duration(ms) * time.Millisecond}
		if name == "stop" {
			s.Op, s.Await = OpStop, true
		}
		return s, nil

	case "zero":
		if hasArg {
			return bad()
		}
		return Step{Op: OpZero}, nil

	case "home":
		switch {
		case !hasArg:
			return Step{Op: OpHome, Await: true}, nil
		case arg == "turns":
			return Step{Op: OpHomeTurns, Await: true}, nil
		}
		return bad()

	case "accel":
		parts := strings.Split(arg, "/")
		if !hasArg || len(parts) != 3 {
			return bad()
		}
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		ramp, err3 := strconv.ParseInt(parts[2], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return bad()
		}
		return Step{Op: OpAccel, MinRPM: lo, MaxRPM: hi, RampMs: ramp}, nil

	case "const":
		rpm, err := strconv.ParseFloat(arg, 64)
		if !hasArg || err != nil || rpm < 0 {
			return bad()
		}
		return Step{Op: OpConstant, RPM: rpm}, nil
	}
	return bad()
}

// Target is whatever a script drives.
type Target interface {
	MoveRelative(delta int64) error
	MoveAbsolute(target int64) error
	Stop() error
	ReturnToOrigin(includeRevolutions bool) error
	ResetOrigin(ctx context.Context) error
	ConfigureAcceleration(minRPM, maxRPM float64, rampMs int64) error
	DisableAcceleration(rpm float64) error

	// WaitIdle blocks until the motor has no motion left.
	WaitIdle(ctx context.Context) error
	// Sleep lets d pass on the target's clock.
	Sleep(ctx context.Context, d time.Duration) error
}

// Runner executes scripts.
type Runner struct {
	Target Target
	Rand   *rand.Rand

	// OnStep, if set, is called before each step.
	OnStep func(i int, s Step)
}

// Run executes steps in order and stops at the first error.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for i, s := range steps {
		if r.OnStep != nil {
			r.OnStep(i, s)
		}
		if err := r.issue(ctx, s); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, s, err)
		}
		if s.Await {
			if err := r.Target.WaitIdle(ctx); err != nil {
				return fmt.Errorf("step %d (%s): %w", i, s, err)
			}
		}
	}
	return nil
}

func (r *Runner) issue(ctx context.Context, s Step) error {
	t := r.Target
	switch s.Op {
	case OpRelative:
		return t.MoveRelative(s.Steps)
	case OpAbsolute:
		return t.MoveAbsolute(s.Steps)
	case OpRandom:
		return t.MoveRelative(r.random(s.Steps))
	case OpStop:
		if err := t.Sleep(ctx, s.Delay); err != nil {
			return err
		}
		return t.Stop()
	case OpWait:
		return t.Sleep(ctx, s.Delay)
	case OpZero:
		return t.ResetOrigin(ctx)
	case OpHome:
		return t.ReturnToOrigin(false)
	case OpHomeTurns:
		return t.ReturnToOrigin(true)
	case OpAccel:
		return t.ConfigureAcceleration(s.MinRPM, s.MaxRPM, s.RampMs)
	case OpConstant:
		return t.DisableAcceleration(s.RPM)
	}
	return fmt.Errorf("%w: op %d", ErrSyntax, s.Op)
}

func (r *Runner) random(limit int64) int64 {
	if r.Rand == nil {
		r.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r.Rand.Int63n(2*limit+1) - limit
}
