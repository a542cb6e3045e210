package moves

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	steps, err := Parse("rel:500  abs:-500 rand:40 rel:2000 stop:300 wait:20 zero home home:turns accel:3/15/500 const:7.5")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []struct {
		op    Op
		await bool
		str   string
	}{
		{OpRelative, true, "rel:500"},
		{OpAbsolute, true, "abs:-500"},
		{OpRandom, true, "rand:40"},
		{OpRelative, false, "rel:2000"},
		{OpStop, true, "stop:300"},
		{OpWait, false, "wait:20"},
		{OpZero, false, "zero"},
		{OpHome, true, "home"},
		{OpHomeTurns, true, "home:turns"},
		{OpAccel, false, "accel:3/15/500"},
		{OpConstant, false, "const:7.5"},
	}
	if len(steps) != len(want) {
		t.Fatalf("len = %d, want %d", len(steps), len(want))
	}
	for i, w := range want {
		s := steps[i]
		if s.Op != w.op || s.Await != w.await || s.String() != w.str {
			t.Errorf("step %d = {%d %v %q}, want {%d %v %q}", i, s.Op, s.Await, s, w.op, w.await, w.str)
		}
	}
	if steps[4].Delay != 300*time.Millisecond {
		t.Errorf("stop delay = %v", steps[4].Delay)
	}
}

func TestParseErrors(t *testing.T) {
	for _, script := range []string{
		"rel",
		"rel:x",
		"abs:1.5",
		"rand:0",
		"stop:10",
		"zero stop:10",
		"wait:-1",
		"zero:1",
		"home:twice",
		"accel:3/15",
		"accel:a/15/500",
		"const:-1",
		"jog:5",
	} {
		if _, err := Parse(script); !errors.Is(err, ErrSyntax) {
			t.Errorf("Parse(%q) error = %v, want ErrSyntax", script, err)
		}
	}
}

type recorder struct {
	calls []string
	now   time.Duration
	fail  error
}

func (r *recorder) add(s string) error {
	r.calls = append(r.calls, s)
	return r.fail
}

func (r *recorder) MoveRelative(d int64) error {
	return r.add("rel " + Step{Op: OpRelative, Steps: d}.String())
}
func (r *recorder) MoveAbsolute(p int64) error { return r.add("abs") }
func (r *recorder) Stop() error                { return r.add("stop@" + r.now.String()) }
func (r *recorder) ReturnToOrigin(full bool) error {
	if full {
		return r.add("home full")
	}
	return r.add("home")
}
func (r *recorder) ResetOrigin(context.Context) error { return r.add("zero") }
func (r *recorder) ConfigureAcceleration(lo, hi float64, ms int64) error {
	return r.add("accel")
}
func (r *recorder) DisableAcceleration(rpm float64) error { return r.add("const") }
func (r *recorder) WaitIdle(context.Context) error {
	r.calls = append(r.calls, "idle")
	return nil
}
func (r *recorder) Sleep(_ context.Context, d time.Duration) error {
	r.now += d
	return nil
}

func TestRunnerSequence(t *testing.T) {
	steps, err := Parse("rel:10 rel:99 stop:25 zero home:turns const:5")
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	var seen []int
	r := Runner{Target: rec, OnStep: func(i int, _ Step) { seen = append(seen, i) }}
	if err := r.Run(context.Background(), steps); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := strings.Join(rec.calls, ",")
	want := "rel rel:10,idle,rel rel:99,stop@25ms,idle,zero,home full,idle,const"
	if got != want {
		t.Errorf("calls = %s\nwant    %s", got, want)
	}
	if len(seen) != len(steps) {
		t.Errorf("OnStep calls = %d, want %d", len(seen), len(steps))
	}
}

func TestRunnerRandomRange(t *testing.T) {
	rec := &recorder{}
	r := Runner{Target: rec, Rand: rand.New(rand.NewSource(1))}
	steps := make([]Step, 200)
	for i := range steps {
		steps[i] = Step{Op: OpRandom, Steps: 3}
	}
	if err := r.Run(context.Background(), steps); err != nil {
		t.Fatal(err)
	}
	for _, c := range rec.calls {
		switch c {
		case "rel rel:-3", "rel rel:-2", "rel rel:-1", "rel rel:0", "rel rel:1", "rel rel:2", "rel rel:3":
		default:
			t.Fatalf("random move %q out of range", c)
		}
	}
}

func TestRunnerStopsOnError(t *testing.T) {
	boom := errors.New("link down")
	rec := &recorder{fail: boom}
	steps, _ := Parse("rel:1 rel:2")
	r := Runner{Target: rec}
	err := r.Run(context.Background(), steps)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "step 0 (rel:1)") {
		t.Errorf("error %q does not name the step", err)
	}
	if len(rec.calls) != 1 {
		t.Errorf("calls = %v, want one", rec.calls)
	}
}
