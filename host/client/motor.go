package client

import (
	"context"
	"errors"
	"math"
	"time"

	"smoothstep/core"
	"smoothstep/protocol"
)

// State is one motor_state report.
type State struct {
	Position           int64
	Target             int64
	Direction          core.Direction
	Moving             bool
	Speed              float64 // steps/ms
	Decelerating       bool
	StepsPerRevolution int64
}

// StepNumber is the position within the current revolution.
func (s State) StepNumber() int64 {
	return s.Position % s.StepsPerRevolution
}

// Revolutions is the number of whole revolutions from the origin.
func (s State) Revolutions() int64 {
	return s.Position / s.StepsPerRevolution
}

// Motor is a remote motor. Its methods mirror core.Motor but each one is a
// round trip and can fail.
type Motor struct {
	c   *Client
	oid uint8
}

func (m *Motor) MoveRelative(delta int64) error {
	return m.c.command(m.c.ids.MoveRelative, m.oid, delta)
}

func (m *Motor) MoveAbsolute(target int64) error {
	return m.c.command(m.c.ids.MoveAbsolute, m.oid, target)
}

func (m *Motor) Stop() error {
	return m.c.command(m.c.ids.Stop, m.oid)
}

func (m *Motor) ReturnToOrigin(includeRevolutions bool) error {
	full := int64(0)
	if includeRevolutions {
		full = 1
	}
	return m.c.command(m.c.ids.ReturnOrigin, m.oid, full)
}

// ResetOrigin waits for the motor to come to rest, then zeroes it.
func (m *Motor) ResetOrigin(ctx context.Context, poll time.Duration) error {
	for {
		err := m.c.command(m.c.ids.ResetOrigin, m.oid)
		if !errors.Is(err, core.ErrMotorBusy) {
			return err
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
}

// ConfigureAcceleration sends speeds with 0.001 rpm resolution.
func (m *Motor) ConfigureAcceleration(minRPM, maxRPM float64, rampMs int64) error {
	if !(minRPM > 0) || !(maxRPM > 0) || rampMs <= 0 {
		return core.ErrInvalidParameter
	}
	return m.c.command(m.c.ids.SetAccel, m.oid, milliRPM(minRPM), milliRPM(maxRPM), rampMs)
}

func (m *Motor) DisableAcceleration(rpm float64) error {
	if !(rpm > 0) {
		rpm = 0
	}
	return m.c.command(m.c.ids.SetConstant, m.oid, milliRPM(rpm))
}

func milliRPM(rpm float64) int64 {
	return int64(math.Round(rpm * 1000))
}

// State queries the motor.
func (m *Motor) State() (State, error) {
	data, err := m.c.exchange(m.c.ids.Query, m.c.ids.State, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(m.oid))
	})
	if err != nil {
		return State{}, err
	}

	var v [8]int64
	for i := range v {
		if v[i], err = protocol.DecodeVLQInt64(&data); err != nil {
			return State{}, err
		}
	}
	if uint8(v[0]) != m.oid {
		return State{}, ErrUnknownMotor
	}
	return State{
		Position:           v[1],
		Target:             v[2],
		Direction:          core.Direction(v[3]),
		Moving:             v[4] != 0,
		Speed:              float64(uint32(v[5])) / 1000,
		Decelerating:       v[6] != 0,
		StepsPerRevolution: int64(uint32(v[7])),
	}, nil
}

func (m *Motor) IsMoving() (bool, error) {
	s, err := m.State()
	return s.Moving, err
}

// WaitUntilIdle polls the motor every poll until it is at rest.
func (m *Motor) WaitUntilIdle(ctx context.Context, poll time.Duration) error {
	for {
		moving, err := m.IsMoving()
		if err != nil || !moving {
			return err
		}
		if err := sleep(ctx, poll); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
