package main

import (
	"testing"

	"smoothstep/host/config"
	"smoothstep/host/sim"
)

func TestPins(t *testing.T) {
	pins, err := parsePins("23, 22,21 ,19")
	if err != nil {
		t.Fatal(err)
	}
	if got := joinPins(pins); got != "23,22,21,19" {
		t.Errorf("joinPins() = %q", got)
	}
	for _, bad := range []string{"", "1,,2", "a", "-1"} {
		if _, err := parsePins(bad); err == nil {
			t.Errorf("parsePins(%q) accepted", bad)
		}
	}
}

func TestPickMotor(t *testing.T) {
	cfg := config.Default()
	cfg.Motors = append(cfg.Motors, config.MotorConfig{Name: "belt"})

	if i, err := pickMotor(cfg, ""); err != nil || i != 0 {
		t.Errorf("pickMotor(\"\") = %d, %v", i, err)
	}
	if i, err := pickMotor(cfg, "belt"); err != nil || i != 1 {
		t.Errorf("pickMotor(belt) = %d, %v", i, err)
	}
	if _, err := pickMotor(cfg, "nope"); err == nil {
		t.Error("pickMotor(nope) succeeded")
	}
	if _, err := pickMotor(&config.Config{}, ""); err == nil {
		t.Error("pickMotor with no motors succeeded")
	}
}

func TestScriptArgs(t *testing.T) {
	if _, err := scriptArgs(nil); err == nil {
		t.Error("empty script accepted")
	}
	steps, err := scriptArgs([]string{"rel:5", "home"})
	if err != nil || len(steps) != 2 {
		t.Errorf("scriptArgs() = %v, %v", steps, err)
	}
}

func TestFromSim(t *testing.T) {
	s := fromSim(sim.Sample{Position: -450, Target: -500, Speed: 0.5}, 200)
	if s.StepNumber != -50 || s.Revolutions != -2 || !s.Moving {
		t.Errorf("fromSim() = %+v", s)
	}
	if r := traceRange([]sim.Sample{{Position: 10, Target: -100}}); r < 100 {
		t.Errorf("traceRange() = %v, want at least 100", r)
	}
}

func TestValidators(t *testing.T) {
	if positiveInt("12") != nil || positiveInt("0") == nil || positiveInt("x") == nil {
		t.Error("positiveInt")
	}
	if positiveFloat("0.5") != nil || positiveFloat("0") == nil || positiveFloat("NaN") == nil {
		t.Error("positiveFloat")
	}
}
