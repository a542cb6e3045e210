package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"smoothstep/core"
	"smoothstep/host/config"
	"smoothstep/host/outputs"
	"smoothstep/host/serial"
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("SmoothStep Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := config.Default()
	m := &cfg.Motors[0]

	var (
		wiring = strconv.Itoa(m.Wiring)
		pins   = joinPins(m.Pins)
		spr    = strconv.FormatInt(m.StepsPerRevolution, 10)
		mode   = "ramp"
		minRPM = "3"
		maxRPM = "15"
		rampMs = "500"
		rpm    = "10"
		device = ""
	)

	devices := []huh.Option[string]{huh.NewOption("none", "")}
	if ports, err := serial.ListPorts(); err == nil {
		for _, p := range ports {
			devices = append(devices, huh.NewOption(p, p))
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Output backend").
				Options(huh.NewOptions(outputs.Backends()...)...).
				Value(&cfg.Backend),
			huh.NewInput().
				Title("GPIO chip").
				Description("gpiocdev only").
				Value(&cfg.Chip),
			huh.NewSelect[string]().
				Title("Controller serial port").
				Description("Used by serve and the remote commands").
				Options(devices...).
				Value(&device),
		),
		huh.NewGroup(
			huh.NewInput().Title("Motor name").Value(&m.Name),
			huh.NewSelect[string]().
				Title("Wiring").
				Options(
					huh.NewOption("2-wire", "2"),
					huh.NewOption("4-wire", "4"),
					huh.NewOption("5-wire", "5"),
				).
				Value(&wiring),
			huh.NewInput().
				Title("Pins").
				Description("GPIO numbers, pin 1 first, comma separated").
				Value(&pins).
				Validate(func(s string) error {
					_, err := parsePins(s)
					return err
				}),
			huh.NewInput().Title("Steps per revolution").Value(&spr).Validate(positiveInt),
			huh.NewSelect[string]().
				Title("Speed mode").
				Options(huh.NewOption("Acceleration ramp", "ramp"), huh.NewOption("Constant speed", "constant")).
				Value(&mode),
		),
		huh.NewGroup(
			huh.NewInput().Title("Minimum rpm").Value(&minRPM).Validate(positiveFloat),
			huh.NewInput().Title("Maximum rpm").Value(&maxRPM).Validate(positiveFloat),
			huh.NewInput().Title("Ramp time (ms)").Value(&rampMs).Validate(positiveInt),
		).WithHideFunc(func() bool { return mode != "ramp" }),
		huh.NewGroup(
			huh.NewInput().Title("Speed (rpm)").Value(&rpm).Validate(positiveFloat),
		).WithHideFunc(func() bool { return mode != "constant" }),
	)
	if err := form.Run(); err != nil {
		return err
	}

	m.Wiring, _ = strconv.Atoi(wiring)
	p, _ := parsePins(pins)
	m.Pins = p
	m.StepsPerRevolution, _ = strconv.ParseInt(spr, 10, 64)
	cfg.Serial.Device = device
	if mode == "ramp" {
		lo, _ := strconv.ParseFloat(minRPM, 64)
		hi, _ := strconv.ParseFloat(maxRPM, 64)
		ms, _ := strconv.ParseInt(rampMs, 10, 64)
		m.Acceleration = &config.Acceleration{MinRPM: lo, MaxRPM: hi, RampMs: ms}
		m.ConstantRPM = 0
	} else {
		m.Acceleration = nil
		m.ConstantRPM, _ = strconv.ParseFloat(rpm, 64)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(opts.Config, cfg); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println("Try it with: " + headerStyle.Render("smoothstep simulate rel:500 home"))
	return nil
}

func joinPins(pins []uint32) string {
	s := make([]string, len(pins))
	for i, p := range pins {
		s[i] = strconv.FormatUint(uint64(p), 10)
	}
	return strings.Join(s, ",")
}

func parsePins(s string) ([]uint32, error) {
	var pins []uint32
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad pin %q", f)
		}
		pins = append(pins, uint32(n))
	}
	return pins, nil
}

func positiveInt(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return errors.New("must be a positive whole number")
	}
	return nil
}

func positiveFloat(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !(f > 0) {
		return core.ErrInvalidParameter
	}
	return nil
}
