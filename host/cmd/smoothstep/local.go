package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"smoothstep/core"
	"smoothstep/host/config"
	"smoothstep/host/monitor"
	"smoothstep/host/moves"
	"smoothstep/host/outputs"
	"smoothstep/host/report"
	"smoothstep/host/rt"
	"smoothstep/host/serial"
	"smoothstep/host/sim"
)

type PortsCommand struct{}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println(dimStyle.Render("No serial ports found."))
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

// scriptArgs joins the positional arguments into one move script.
func scriptArgs(args []string) ([]moves.Step, error) {
	if len(args) == 0 {
		return nil, errors.New("no moves given, e.g. rel:500 abs:-500 home")
	}
	return moves.Parse(strings.Join(args, " "))
}

func pickMotor(cfg *config.Config, name string) (int, error) {
	if len(cfg.Motors) == 0 {
		return 0, errors.New("no motors configured")
	}
	if name == "" {
		return 0, nil
	}
	i, ok := cfg.Motor(name)
	if !ok {
		return 0, fmt.Errorf("no motor named %q", name)
	}
	return i, nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func printStep(i int, s moves.Step) {
	fmt.Println(dimStyle.Render(fmt.Sprintf("%3d  %s", i, s)))
}

type SimulateCommand struct {
	Motor   string        `short:"m" long:"motor" description:"Configured motor to simulate (default: first)"`
	Tick    time.Duration `long:"tick" default:"50us" description:"Virtual time per loop iteration"`
	Seed    int64         `long:"seed" default:"1" description:"Seed for rand: moves"`
	TUI     bool          `long:"tui" description:"Replay the run in the monitor"`
	Speedup float64       `long:"speedup" default:"1" description:"Replay speed factor"`
}

func (c *SimulateCommand) Execute(args []string) error {
	steps, err := scriptArgs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := pickMotor(cfg, c.Motor)
	if err != nil {
		return err
	}
	mc := cfg.Motors[idx]

	s, err := sim.New(mc.Core(), c.Tick)
	if err != nil {
		return err
	}
	if err := mc.Apply(s.Motor); err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Simulating " + mc.Name))
	r := moves.Runner{Target: s, Rand: newRand(c.Seed), OnStep: printStep}
	if err := r.Run(context.Background(), steps); err != nil {
		return err
	}
	fmt.Println()
	if err := report.Write(os.Stdout, s); err != nil {
		return err
	}

	if !c.TUI {
		return nil
	}
	replay := s.Replay(c.Speedup)
	spr := mc.StepsPerRevolution
	src := func() (monitor.Sample, error) {
		smp, ok := replay.Next()
		if !ok {
			return fromSim(smp, spr), monitor.ErrDone
		}
		return fromSim(smp, spr), nil
	}
	return monitor.Run(monitor.New("simulated "+mc.Name, src, 20*time.Millisecond, traceRange(s.Samples())))
}

func fromSim(s sim.Sample, spr int64) monitor.Sample {
	return monitor.Sample{
		Position:    s.Position,
		Target:      s.Target,
		Speed:       s.Speed,
		Moving:      s.Position != s.Target,
		Direction:   s.Direction.String(),
		StepNumber:  s.Position % spr,
		Revolutions: s.Position / spr,
	}
}

func traceRange(samples []sim.Sample) float64 {
	r := 0.0
	for _, s := range samples {
		r = math.Max(r, math.Abs(float64(s.Position)))
		r = math.Max(r, math.Abs(float64(s.Target)))
	}
	return r * 1.1
}

// rig is a set of motors whose step loops run on this host.
type rig struct {
	cfg    *config.Config
	sink   outputs.Sink
	motors []*core.Motor

	settle time.Duration // how long stop waits for motors to come to rest
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startRig(cfg *config.Config) (*rig, error) {
	sink, err := outputs.Open(cfg.Outputs())
	if err != nil {
		return nil, err
	}
	clock, err := rt.NewMonotonicClock()
	if err != nil {
		sink.Close()
		return nil, err
	}
	motors, err := cfg.Build(sink, clock)
	if err != nil {
		sink.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &rig{cfg: cfg, sink: sink, motors: motors, cancel: cancel}
	for i, m := range motors {
		cpu := cfg.Motors[i].CPUIndex()
		r.wg.Add(1)
		go func(name string, m *core.Motor) {
			defer r.wg.Done()
			if err := rt.RunPinned(ctx, m, cpu); err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintln(os.Stderr, errStyle.Render(name+": "+err.Error()))
			}
		}(cfg.Motors[i].Name, m)
	}
	return r, nil
}

// stop ends the loops, de-energises the coils and releases the outputs.
// A motor that is still moving when the loops end keeps its coils
// energised and is reported.
func (r *rig) stop() error {
	for _, m := range r.motors {
		m.Stop()
	}
	settle := r.settle
	if settle == 0 {
		settle = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), settle)
	defer cancel()

	var err error
	for i, m := range r.motors {
		if werr := m.WaitIdle(ctx); werr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: wait for stop: %w", r.name(i), werr))
		}
	}

	r.cancel()
	r.wg.Wait()
	for i, m := range r.motors {
		if rerr := m.Release(); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: release: %w", r.name(i), rerr))
		}
		if opts.Verbose {
			m.DumpTiming()
		}
	}
	return multierr.Append(err, r.sink.Close())
}

func (r *rig) name(i int) string {
	if r.cfg != nil && i < len(r.cfg.Motors) {
		return r.cfg.Motors[i].Name
	}
	return fmt.Sprintf("motor%d", i)
}

type DriveCommand struct {
	Motor string `short:"m" long:"motor" description:"Configured motor to drive (default: first)"`
	Seed  int64  `long:"seed" description:"Seed for rand: moves (default: time)"`
	TUI   bool   `long:"tui" description:"Show the monitor while driving"`
}

func (c *DriveCommand) Execute(args []string) error {
	steps, err := scriptArgs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := pickMotor(cfg, c.Motor)
	if err != nil {
		return err
	}

	r, err := startRig(cfg)
	if err != nil {
		return err
	}
	m := r.motors[idx]

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := moves.Runner{Target: moves.Local(m)}
	if c.Seed != 0 {
		runner.Rand = newRand(c.Seed)
	}

	if !c.TUI {
		runner.OnStep = printStep
		err = runner.Run(ctx, steps)
	} else {
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx, steps) }()
		src := func() (monitor.Sample, error) {
			select {
			case err := <-done:
				done <- err
				return fromMotor(m), monitor.ErrDone
			default:
				return fromMotor(m), nil
			}
		}
		spr := float64(cfg.Motors[idx].StepsPerRevolution)
		if terr := monitor.Run(monitor.New(cfg.Motors[idx].Name, src, 50*time.Millisecond, spr)); terr != nil {
			cancel()
			<-done
			return errors.Join(terr, r.stop())
		}
		cancel()
		err = <-done
	}

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, r.stop())
}

func fromMotor(m *core.Motor) monitor.Sample {
	s := m.Snapshot()
	return monitor.Sample{
		Position:    s.Position,
		Target:      s.Target,
		Speed:       s.Speed,
		Moving:      s.Moving,
		Direction:   s.Direction.String(),
		StepNumber:  m.CurrentStepNumber(),
		Revolutions: m.CurrentRevolutionCount(),
	}
}

type ServeCommand struct {
	Device string `short:"d" long:"device" description:"Serial device (default: from config)"`
}

func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc := cfg.SerialPort(c.Device)
	if sc.Device == "" {
		return errors.New("no serial device; pass --device or set serial.device")
	}

	r, err := startRig(cfg)
	if err != nil {
		return err
	}
	port, err := serial.Open(sc)
	if err != nil {
		return errors.Join(err, r.stop())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println(headerStyle.Render("Serving " + fmt.Sprint(len(r.motors)) + " motor(s) on " + sc.Device))
	link := core.NewLink(r.motors)
	err = link.Serve(ctx, port)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if n := link.FrameErrors(); n > 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf("%d frame errors", n)))
	}
	return errors.Join(err, port.Close(), r.stop())
}
