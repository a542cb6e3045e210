// Package config loads the host's motor and output configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"smoothstep/core"
	"smoothstep/host/outputs"
	"smoothstep/host/serial"
)

// Config describes the outputs and motors of one host.
type Config struct {
	Backend string        `json:"backend"`
	Chip    string        `json:"chip,omitempty"`
	Firmata FirmataConfig `json:"firmata"`
	Serial  SerialConfig  `json:"serial"`
	Motors  []MotorConfig `json:"motors"`
}

// FirmataConfig locates a Firmata board used as the output backend.
type FirmataConfig struct {
	Port string `json:"port,omitempty"`
	Baud int    `json:"baud,omitempty"`
}

// SerialConfig is the link served by "smoothstep serve" or dialled by the
// remote commands.
type SerialConfig struct {
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`
}

// MotorConfig is one motor. Exactly one of Acceleration and ConstantRPM
// selects its speed mode; Acceleration wins when both are set.
type MotorConfig struct {
	Name               string        `json:"name"`
	Wiring             int           `json:"wiring"`
	Pins               []uint32      `json:"pins"`
	StepsPerRevolution int64         `json:"steps_per_revolution"`
	CPU                *int          `json:"cpu,omitempty"`
	Acceleration       *Acceleration `json:"acceleration,omitempty"`
	ConstantRPM        float64       `json:"constant_rpm,omitempty"`
}

// Acceleration is a trapezoidal ramp in rev/min and ms.
type Acceleration struct {
	MinRPM float64 `json:"min_rpm"`
	MaxRPM float64 `json:"max_rpm"`
	RampMs int64   `json:"ramp_ms"`
}

var errDuplicateName = errors.New("duplicate motor name")

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSON and fills in defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg as indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func applyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = "gpiocdev"
	}
	if cfg.Firmata.Baud == 0 {
		cfg.Firmata.Baud = outputs.DefaultFirmataBaud
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 250000
	}

	for i := range cfg.Motors {
		m := &cfg.Motors[i]
		if m.Name == "" {
			m.Name = fmt.Sprintf("motor%d", i)
		}
		if m.Wiring == 0 {
			m.Wiring = int(core.FourWire)
		}
		if m.StepsPerRevolution == 0 {
			m.StepsPerRevolution = 2048
		}
		if m.Acceleration == nil && m.ConstantRPM == 0 {
			m.Acceleration = &Acceleration{MinRPM: 3, MaxRPM: 15, RampMs: 500}
		}
	}
}

// Validate checks every motor without touching hardware.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Motors))
	for _, m := range c.Motors {
		if seen[m.Name] {
			return fmt.Errorf("%w: %q", errDuplicateName, m.Name)
		}
		seen[m.Name] = true

		w := core.WiringMode(m.Wiring)
		if !w.Valid() {
			return fmt.Errorf("motor %s: %w", m.Name, core.ErrUnsupportedWiring)
		}
		if len(m.Pins) != w.Pins() {
			return fmt.Errorf("motor %s: %w", m.Name, core.ErrPinCount)
		}
		if a := m.Acceleration; a != nil {
			if _, err := core.NewKinematicParams(m.StepsPerRevolution, a.MinRPM, a.MaxRPM, a.RampMs); err != nil {
				return fmt.Errorf("motor %s: %w", m.Name, err)
			}
		} else if m.StepsPerRevolution <= 0 {
			return fmt.Errorf("motor %s: %w", m.Name, core.ErrStepsPerRevolution)
		}
	}
	return nil
}

// Default is a single 28BYJ-48 style motor on a 4-wire driver.
func Default() *Config {
	cfg := &Config{
		Motors: []MotorConfig{{
			Name:               "motor0",
			Wiring:             int(core.FourWire),
			Pins:               []uint32{23, 22, 21, 19},
			StepsPerRevolution: 2048,
			Acceleration:       &Acceleration{MinRPM: 3, MaxRPM: 15, RampMs: 500},
		}},
	}
	applyDefaults(cfg)
	return cfg
}

// Outputs returns the sink settings.
func (c *Config) Outputs() outputs.Config {
	return outputs.Config{
		Backend:     c.Backend,
		Chip:        c.Chip,
		FirmataPort: c.Firmata.Port,
		FirmataBaud: c.Firmata.Baud,
	}
}

// SerialPort returns the link settings, with device overriding the file
// when non-empty.
func (c *Config) SerialPort(device string) *serial.Config {
	if device == "" {
		device = c.Serial.Device
	}
	sc := serial.DefaultConfig(device)
	sc.Baud = c.Serial.Baud
	return sc
}

// Core converts to the construction-time motor configuration.
func (m MotorConfig) Core() core.MotorConfig {
	pins := make([]core.GPIOPin, len(m.Pins))
	for i, p := range m.Pins {
		pins[i] = core.GPIOPin(p)
	}
	return core.MotorConfig{
		Wiring:             core.WiringMode(m.Wiring),
		StepsPerRevolution: m.StepsPerRevolution,
		Pins:               pins,
	}
}

// CPUIndex is the CPU the motor's loop is pinned to, or -1.
func (m MotorConfig) CPUIndex() int {
	if m.CPU == nil {
		return -1
	}
	return *m.CPU
}

// Apply sets the motor's speed mode.
func (m MotorConfig) Apply(motor *core.Motor) error {
	if a := m.Acceleration; a != nil {
		return motor.ConfigureAcceleration(a.MinRPM, a.MaxRPM, a.RampMs)
	}
	motor.DisableAcceleration(m.ConstantRPM)
	return nil
}

// Build constructs every motor on out with its speed mode applied.
func (c *Config) Build(out core.GPIODriver, clock core.Clock) ([]*core.Motor, error) {
	motors := make([]*core.Motor, 0, len(c.Motors))
	for _, mc := range c.Motors {
		m, err := core.NewMotor(mc.Core(), out, clock)
		if err != nil {
			return nil, fmt.Errorf("motor %s: %w", mc.Name, err)
		}
		if err := mc.Apply(m); err != nil {
			return nil, fmt.Errorf("motor %s: %w", mc.Name, err)
		}
		motors = append(motors, m)
	}
	return motors, nil
}

// Motor finds a motor by name and returns its index.
func (c *Config) Motor(name string) (int, bool) {
	for i, m := range c.Motors {
		if m.Name == name {
			return i, true
		}
	}
	return 0, false
}
