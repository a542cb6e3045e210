package core

import (
	"testing"
)

// recordingDriver keeps the last level written to each pin.
type recordingDriver struct {
	claims PinClaims
	levels map[GPIOPin]bool
	sets   int
	fail   error
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{levels: make(map[GPIOPin]bool)}
}

func (d *recordingDriver) ConfigureOutput(pin GPIOPin) error {
	if err := d.claims.Claim(pin); err != nil {
		return err
	}
	d.levels[pin] = false
	return nil
}

func (d *recordingDriver) SetPin(pin GPIOPin, value bool) error {
	if d.fail != nil {
		return d.fail
	}
	d.levels[pin] = value
	d.sets++
	return nil
}

// pattern renders the levels of pins as "1010", pin 1 first.
func (d *recordingDriver) pattern(pins []GPIOPin) string {
	b := make([]byte, len(pins))
	for i, pin := range pins {
		b[i] = '0'
		if d.levels[pin] {
			b[i] = '1'
		}
	}
	return string(b)
}

// batchDriver also implements PatternWriter.
type batchDriver struct {
	recordingDriver
	batches int
}

func (d *batchDriver) WritePattern(pins []GPIOPin, levels []bool) error {
	for i, pin := range pins {
		d.levels[pin] = levels[i]
	}
	d.batches++
	return nil
}

const testStepsPerRev = 2048

func testConfig() MotorConfig {
	return MotorConfig{
		Wiring:             FourWire,
		StepsPerRevolution: testStepsPerRev,
		Pins:               []GPIOPin{23, 22, 21, 19},
	}
}

func newTestMotor(t *testing.T, cfg MotorConfig) (*Motor, *ManualClock, *recordingDriver) {
	t.Helper()
	drv := newRecordingDriver()
	clk := NewManualClock(0)
	m, err := NewMotor(cfg, drv, clk)
	if err != nil {
		t.Fatalf("NewMotor: %v", err)
	}
	return m, clk, drv
}

func newAccelMotor(t *testing.T) (*Motor, *ManualClock, *recordingDriver) {
	t.Helper()
	m, clk, drv := newTestMotor(t, testConfig())
	if err := m.ConfigureAcceleration(3, 15, 500); err != nil {
		t.Fatalf("ConfigureAcceleration: %v", err)
	}
	return m, clk, drv
}

const maxPolls = 5000000

// runIdle polls m every tick µs until it is idle, passing each snapshot to
// observe when it is non-nil.
func runIdle(t *testing.T, m *Motor, clk *ManualClock, tick uint64, observe func(Snapshot)) {
	t.Helper()
	for i := 0; i < maxPolls; i++ {
		m.Poll(clk.Advance(tick))
		if observe != nil {
			observe(m.Snapshot())
		}
		if !m.IsMoving() {
			return
		}
	}
	t.Fatalf("motor still moving after %d polls: %+v", maxPolls, m.Snapshot())
}

// runUntil polls m until cond holds.
func runUntil(t *testing.T, m *Motor, clk *ManualClock, tick uint64, cond func() bool) {
	t.Helper()
	for i := 0; i < maxPolls; i++ {
		m.Poll(clk.Advance(tick))
		if cond() {
			return
		}
	}
	t.Fatalf("condition not reached after %d polls: %+v", maxPolls, m.Snapshot())
}
