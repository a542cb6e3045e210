package sim

import (
	"context"
	"testing"
	"time"

	"smoothstep/core"
	"smoothstep/host/moves"
)

func newSim(t *testing.T, spr int64) *Simulator {
	t.Helper()
	s, err := New(core.MotorConfig{
		Wiring:             core.FourWire,
		StepsPerRevolution: spr,
		Pins:               []core.GPIOPin{23, 22, 21, 19},
	}, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestConstantCadence(t *testing.T) {
	s := newSim(t, 200)
	s.Motor.DisableAcceleration(60)
	s.MoveRelative(10)
	if err := s.WaitIdle(context.Background()); err != nil {
		t.Fatal(err)
	}

	samples := s.Samples()
	if len(samples) != 10 {
		t.Fatalf("samples = %d, want 10", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if d := samples[i].Time - samples[i-1].Time; d != 5000 {
			t.Errorf("step %d interval = %d µs, want 5000", i, d)
		}
	}
	wantPatterns := []string{"0110", "0101", "1001", "1010"}
	for i, want := range wantPatterns {
		if samples[i].Pattern != want {
			t.Errorf("pattern %d = %s, want %s", i, samples[i].Pattern, want)
		}
	}

	legs := s.Legs()
	if len(legs) != 1 {
		t.Fatalf("legs = %d, want 1", len(legs))
	}
	l := legs[0]
	if l.From != 0 || l.To != 10 || l.Steps != 10 || l.Reversals != 0 {
		t.Errorf("leg = %+v", l)
	}
}

func TestScriptOnRamp(t *testing.T) {
	s := newSim(t, 2048)
	if err := s.ConfigureAcceleration(3, 15, 500); err != nil {
		t.Fatal(err)
	}
	steps, err := moves.Parse("rel:1000 abs:-200 home")
	if err != nil {
		t.Fatal(err)
	}
	r := moves.Runner{Target: s}
	if err := r.Run(context.Background(), steps); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := s.Motor.Position(); got != 0 {
		t.Errorf("Position() = %d, want 0", got)
	}
	legs := s.Legs()
	if len(legs) != 3 {
		t.Fatalf("legs = %d, want 3", len(legs))
	}
	vmax := s.Motor.Params().VMax
	for i, l := range legs {
		if l.PeakSpeed > vmax {
			t.Errorf("leg %d peak %v above VMax %v", i, l.PeakSpeed, vmax)
		}
	}
	if legs[0].To != 1000 || legs[1].To != -200 || legs[2].To != 0 {
		t.Errorf("leg ends = %d, %d, %d", legs[0].To, legs[1].To, legs[2].To)
	}

	prev := int64(0)
	for i, smp := range s.Samples() {
		if d := smp.Position - prev; d != 1 && d != -1 {
			t.Fatalf("sample %d moved %d steps", i, d)
		}
		prev = smp.Position
	}
}

func TestReversalLeg(t *testing.T) {
	s := newSim(t, 2048)
	if err := s.ConfigureAcceleration(3, 15, 500); err != nil {
		t.Fatal(err)
	}
	s.MoveRelative(2000)
	s.Run(1500 * time.Millisecond)
	s.MoveRelative(-3000)
	if err := s.WaitIdle(context.Background()); err != nil {
		t.Fatal(err)
	}

	legs := s.Legs()
	if len(legs) != 1 {
		t.Fatalf("legs = %d, want 1", len(legs))
	}
	if legs[0].Reversals < 1 || legs[0].To != -1000 {
		t.Errorf("leg = %+v, want a reversal ending at -1000", legs[0])
	}
}

func TestWaitIdleLimit(t *testing.T) {
	s := newSim(t, 200)
	s.Motor.DisableAcceleration(1)
	s.Limit = time.Second
	s.MoveRelative(1000)
	if err := s.WaitIdle(context.Background()); err != ErrTimeout {
		t.Fatalf("WaitIdle() = %v, want ErrTimeout", err)
	}
}

func TestResetOriginWaits(t *testing.T) {
	s := newSim(t, 200)
	s.Motor.DisableAcceleration(120)
	s.MoveRelative(30)
	if err := s.ResetOrigin(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Motor.Position() != 0 || s.Motor.IsMoving() {
		t.Errorf("after ResetOrigin position = %d moving = %v", s.Motor.Position(), s.Motor.IsMoving())
	}
}

func TestReplay(t *testing.T) {
	s := newSim(t, 200)
	s.Motor.DisableAcceleration(60)
	s.MoveRelative(4)
	if err := s.WaitIdle(context.Background()); err != nil {
		t.Fatal(err)
	}

	start := time.Unix(100, 0)
	now := start
	r := s.Replay(2)
	r.now = func() time.Time { return now }

	if smp, ok := r.Next(); !ok || smp.Position != 0 {
		t.Errorf("before first step = %+v, %v", smp, ok)
	}
	// 2x: 6ms of wall time covers the first two steps at 5ms and 10ms
	now = start.Add(6 * time.Millisecond)
	if smp, ok := r.Next(); !ok || smp.Position != 2 {
		t.Errorf("at 12ms = %+v, %v, want position 2", smp, ok)
	}
	now = start.Add(time.Second)
	if smp, ok := r.Next(); !ok || smp.Position != 4 {
		t.Errorf("at end = %+v, %v, want position 4", smp, ok)
	}
	if smp, ok := r.Next(); ok || smp.Position != 4 {
		t.Errorf("exhausted = %+v, %v, want last sample and false", smp, ok)
	}
}
