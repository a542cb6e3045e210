package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"smoothstep/core"
)

type nopDriver struct{}

func (nopDriver) ConfigureOutput(core.GPIOPin) error { return nil }
func (nopDriver) SetPin(core.GPIOPin, bool) error    { return nil }

// controller serves one motor over a pipe, stepping it in virtual time.
func controller(t *testing.T) (*Client, *core.Motor) {
	t.Helper()
	m, err := core.NewMotor(core.MotorConfig{
		Wiring:             core.FourWire,
		StepsPerRevolution: 200,
		Pins:               []core.GPIOPin{1, 2, 3, 4},
	}, nopDriver{}, core.NewManualClock(0))
	if err != nil {
		t.Fatal(err)
	}
	m.DisableAcceleration(60)

	ctx, cancel := context.WithCancel(context.Background())
	clk := m.Clock().(*core.ManualClock)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for ctx.Err() == nil {
			m.Poll(clk.Advance(500))
		}
	}()

	hostConn, devConn := net.Pipe()
	link := core.NewLink([]*core.Motor{m})
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = link.Serve(ctx, devConn)
	}()

	c := New(hostConn)
	t.Cleanup(func() {
		cancel()
		c.Close()
		devConn.Close()
		<-served
		<-loopDone
	})
	return c, m
}

func TestClientInfo(t *testing.T) {
	c, _ := controller(t)
	info, err := c.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != core.Version || info.Motors != 1 {
		t.Errorf("Info = %+v", info)
	}
}

func TestClientMoves(t *testing.T) {
	c, local := controller(t)
	m := c.Motor(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.MoveRelative(450); err != nil {
		t.Fatal(err)
	}
	if err := m.WaitUntilIdle(ctx, time.Millisecond); err != nil {
		t.Fatal(err)
	}

	s, err := m.State()
	if err != nil {
		t.Fatal(err)
	}
	if s.Position != 450 || s.StepNumber() != 50 || s.Revolutions() != 2 || s.Moving {
		t.Errorf("state after move: %+v", s)
	}
	if local.Position() != 450 {
		t.Errorf("controller position %d", local.Position())
	}

	if err := m.ReturnToOrigin(false); err != nil {
		t.Fatal(err)
	}
	if err := m.MoveRelative(-10); err != nil {
		t.Fatal(err)
	}
	if err := m.ResetOrigin(ctx, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if local.Position() != 0 || local.Target() != 0 {
		t.Errorf("after ResetOrigin: position %d target %d", local.Position(), local.Target())
	}

	if err := m.MoveAbsolute(-30); err != nil {
		t.Fatal(err)
	}
	if err := m.WaitUntilIdle(ctx, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if local.Position() != -30 {
		t.Errorf("position %d, want -30", local.Position())
	}
}

func TestClientConfigure(t *testing.T) {
	c, local := controller(t)
	m := c.Motor(0)

	if err := m.ConfigureAcceleration(15, 3, 500); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("min above max: %v", err)
	}
	if err := m.ConfigureAcceleration(0, 3, 500); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("zero min: %v", err)
	}
	if p := local.Params(); p.Smoothing {
		t.Error("rejected ramp was applied")
	}

	if err := m.ConfigureAcceleration(3, 15.5, 500); err != nil {
		t.Fatal(err)
	}
	p := local.Params()
	if !p.Smoothing || p.VMax != core.RPMToStepsPerMs(15.5, 200) {
		t.Errorf("params %+v", p)
	}

	if err := m.DisableAcceleration(0); err != nil {
		t.Fatal(err)
	}
	if p := local.Params(); p.Smoothing || p.VMin != core.MinConstantSpeed {
		t.Errorf("constant params %+v", p)
	}
}

func TestClientUnknownMotor(t *testing.T) {
	c, _ := controller(t)
	m := c.Motor(7)

	if err := m.Stop(); !errors.Is(err, ErrUnknownMotor) {
		t.Errorf("Stop: %v", err)
	}
	if _, err := m.State(); !errors.Is(err, ErrUnknownMotor) {
		t.Errorf("State: %v", err)
	}
}
