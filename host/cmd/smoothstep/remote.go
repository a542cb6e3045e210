package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smoothstep/host/client"
	"smoothstep/host/monitor"
	"smoothstep/host/serial"
)

// RemoteOptions address one motor on a controller.
type RemoteOptions struct {
	Device  string        `short:"d" long:"device" description:"Controller serial device (default: from config)"`
	Motor   uint8         `short:"m" long:"motor" default:"0" description:"Motor index on the controller"`
	Timeout time.Duration `long:"timeout" default:"1s" description:"Response timeout"`
	Poll    time.Duration `long:"poll" default:"50ms" description:"State polling interval"`
}

func (o *RemoteOptions) dial() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	sc := cfg.SerialPort(o.Device)
	if sc.Device == "" {
		return nil, fmt.Errorf("no serial device; pass --device or set serial.device")
	}
	port, err := serial.Open(sc)
	if err != nil {
		return nil, err
	}
	c := client.New(port)
	c.SetTimeout(o.Timeout)
	return c, nil
}

// with dials, runs fn against the addressed motor and hangs up.
func (o *RemoteOptions) with(fn func(ctx context.Context, c *client.Client, m *client.Motor) error) error {
	c, err := o.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return fn(ctx, c, c.Motor(o.Motor))
}

// WaitOption adds --wait to motion commands.
type WaitOption struct {
	Wait bool `short:"w" long:"wait" description:"Wait until the motor is idle"`
}

func (w WaitOption) after(ctx context.Context, o *RemoteOptions, m *client.Motor, err error) error {
	if err != nil || !w.Wait {
		return err
	}
	if err := m.WaitUntilIdle(ctx, o.Poll); err != nil {
		return err
	}
	return printState(m)
}

type MoveCommand struct {
	RemoteOptions
	WaitOption
	Args struct {
		Steps int64 `positional-arg-name:"steps"`
	} `positional-args:"yes" required:"yes"`
}

func (c *MoveCommand) Execute(args []string) error {
	return c.with(func(ctx context.Context, _ *client.Client, m *client.Motor) error {
		return c.after(ctx, &c.RemoteOptions, m, m.MoveRelative(c.Args.Steps))
	})
}

type GotoCommand struct {
	RemoteOptions
	WaitOption
	Args struct {
		Position int64 `positional-arg-name:"position"`
	} `positional-args:"yes" required:"yes"`
}

func (c *GotoCommand) Execute(args []string) error {
	return c.with(func(ctx context.Context, _ *client.Client, m *client.Motor) error {
		return c.after(ctx, &c.RemoteOptions, m, m.MoveAbsolute(c.Args.Position))
	})
}

type StopCommand struct {
	RemoteOptions
	WaitOption
}

func (c *StopCommand) Execute(args []string) error {
	return c.with(func(ctx context.Context, _ *client.Client, m *client.Motor) error {
		return c.after(ctx, &c.RemoteOptions, m, m.Stop())
	})
}

type HomeCommand struct {
	RemoteOptions
	WaitOption
	Turns bool `short:"t" long:"turns" description:"Also undo whole revolutions"`
}

func (c *HomeCommand) Execute(args []string) error {
	return c.with(func(ctx context.Context, _ *client.Client, m *client.Motor) error {
		return c.after(ctx, &c.RemoteOptions, m, m.ReturnToOrigin(c.Turns))
	})
}

type ZeroCommand struct {
	RemoteOptions
}

func (c *ZeroCommand) Execute(args []string) error {
	return c.with(func(ctx context.Context, _ *client.Client, m *client.Motor) error {
		if err := m.ResetOrigin(ctx, c.Poll); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("origin reset"))
		return nil
	})
}

type AccelCommand struct {
	RemoteOptions
	Args struct {
		MinRPM float64 `positional-arg-name:"min-rpm"`
		MaxRPM float64 `positional-arg-name:"max-rpm"`
		RampMs int64   `positional-arg-name:"ramp-ms"`
	} `positional-args:"yes" required:"yes"`
}

func (c *AccelCommand) Execute(args []string) error {
	return c.with(func(_ context.Context, _ *client.Client, m *client.Motor) error {
		return m.ConfigureAcceleration(c.Args.MinRPM, c.Args.MaxRPM, c.Args.RampMs)
	})
}

type ConstantCommand struct {
	RemoteOptions
	Args struct {
		RPM float64 `positional-arg-name:"rpm"`
	} `positional-args:"yes" required:"yes"`
}

func (c *ConstantCommand) Execute(args []string) error {
	return c.with(func(_ context.Context, _ *client.Client, m *client.Motor) error {
		return m.DisableAcceleration(c.Args.RPM)
	})
}

type StatusCommand struct {
	RemoteOptions
}

func (c *StatusCommand) Execute(args []string) error {
	return c.with(func(_ context.Context, cl *client.Client, m *client.Motor) error {
		info, err := cl.Info()
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("controller v%d, %d motor(s)", info.Version, info.Motors)))
		return printState(m)
	})
}

func printState(m *client.Motor) error {
	s, err := m.State()
	if err != nil {
		return err
	}
	state := dimStyle.Render("idle")
	if s.Moving {
		state = successStyle.Render("moving " + s.Direction.String())
	}
	fmt.Printf("position %d (rev %d step %d)  target %d  %s  %.3f steps/ms\n",
		s.Position, s.Revolutions(), s.StepNumber(), s.Target, state, s.Speed)
	return nil
}

type WatchCommand struct {
	RemoteOptions
	Range float64 `long:"range" description:"Chart y range in steps (default: one revolution)"`
}

func (c *WatchCommand) Execute(args []string) error {
	return c.with(func(_ context.Context, _ *client.Client, m *client.Motor) error {
		first, err := m.State()
		if err != nil {
			return err
		}
		yRange := c.Range
		if yRange <= 0 {
			yRange = math.Max(float64(first.StepsPerRevolution), math.Abs(float64(first.Position))*1.5)
		}
		src := func() (monitor.Sample, error) {
			s, err := m.State()
			if err != nil {
				return monitor.Sample{}, err
			}
			return monitor.Sample{
				Position:    s.Position,
				Target:      s.Target,
				Speed:       s.Speed,
				Moving:      s.Moving,
				Direction:   s.Direction.String(),
				StepNumber:  s.StepNumber(),
				Revolutions: s.Revolutions(),
			}, nil
		}
		title := fmt.Sprintf("motor %d", c.Motor)
		return monitor.Run(monitor.New(title, src, c.Poll, yRange))
	})
}
