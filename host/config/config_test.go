package config

import (
	"errors"
	"path/filepath"
	"testing"

	"smoothstep/core"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Backend != "gpiocdev" {
		t.Errorf("Backend = %q, want gpiocdev", cfg.Backend)
	}
	m := cfg.Motors[0]
	if m.StepsPerRevolution != 2048 {
		t.Errorf("StepsPerRevolution = %d, want 2048", m.StepsPerRevolution)
	}
	if a := m.Acceleration; a == nil || a.MinRPM != 3 || a.MaxRPM != 15 || a.RampMs != 500 {
		t.Errorf("Acceleration = %+v, want 3/15/500", a)
	}
	if m.CPUIndex() != -1 {
		t.Errorf("CPUIndex() = %d, want -1", m.CPUIndex())
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"motors": [
			{"pins": [1, 2, 3, 4]},
			{"name": "belt", "wiring": 2, "pins": [5, 6], "steps_per_revolution": 200, "constant_rpm": 60, "cpu": 2}
		]
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Serial.Baud != 250000 || cfg.Firmata.Baud != 57600 {
		t.Errorf("bauds = %d/%d", cfg.Serial.Baud, cfg.Firmata.Baud)
	}

	a := cfg.Motors[0]
	if a.Name != "motor0" || a.Wiring != 4 || a.StepsPerRevolution != 2048 || a.Acceleration == nil {
		t.Errorf("motor0 defaults = %+v", a)
	}

	b := cfg.Motors[1]
	if b.Acceleration != nil {
		t.Error("constant-speed motor got a default ramp")
	}
	if b.CPUIndex() != 2 {
		t.Errorf("CPUIndex() = %d, want 2", b.CPUIndex())
	}
	if i, ok := cfg.Motor("belt"); !ok || i != 1 {
		t.Errorf("Motor(belt) = %d, %v", i, ok)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"wiring", `{"motors":[{"wiring":3,"pins":[1,2,3]}]}`, core.ErrUnsupportedWiring},
		{"pins", `{"motors":[{"pins":[1,2]}]}`, core.ErrPinCount},
		{"ramp", `{"motors":[{"pins":[1,2,3,4],"acceleration":{"min_rpm":15,"max_rpm":3,"ramp_ms":500}}]}`, core.ErrInvalidParameter},
		{"names", `{"motors":[{"name":"a","pins":[1,2,3,4]},{"name":"a","pins":[5,6,7,8]}]}`, errDuplicateName},
		{"spr", `{"motors":[{"pins":[1,2,3,4],"steps_per_revolution":-1,"constant_rpm":5}]}`, core.ErrStepsPerRevolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoothstep.json")
	cfg := Default()
	cfg.Serial.Device = "/dev/ttyACM0"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Serial.Device != "/dev/ttyACM0" || len(got.Motors) != 1 {
		t.Errorf("Load() = %+v", got)
	}
	if sc := got.SerialPort(""); sc.Device != "/dev/ttyACM0" || sc.Baud != 250000 {
		t.Errorf("SerialPort() = %+v", sc)
	}
	if sc := got.SerialPort("/dev/ttyUSB1"); sc.Device != "/dev/ttyUSB1" {
		t.Errorf("SerialPort(override) = %+v", sc)
	}
}

type nopDriver struct{}

func (nopDriver) ConfigureOutput(core.GPIOPin) error { return nil }
func (nopDriver) SetPin(core.GPIOPin, bool) error    { return nil }

func TestBuild(t *testing.T) {
	cfg, err := Parse([]byte(`{"motors":[
		{"pins":[1,2,3,4]},
		{"name":"b","wiring":5,"pins":[5,6,7,8,9],"steps_per_revolution":500,"constant_rpm":30}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	motors, err := cfg.Build(nopDriver{}, core.NewManualClock(0))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(motors) != 2 {
		t.Fatalf("motors = %d, want 2", len(motors))
	}
	if p := motors[0].Params(); p == nil || !p.Smoothing {
		t.Errorf("motor0 params = %+v, want ramp", p)
	}
	if p := motors[1].Params(); p == nil || p.Smoothing || p.VMin != 0.25 {
		t.Errorf("motor b params = %+v, want constant 0.25 steps/ms", p)
	}
}
