package core

import "errors"

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNotConfigured      = errors.New("motor speed not configured")
	ErrMotorBusy          = errors.New("motor is moving")
	ErrStepsPerRevolution = errors.New("steps per revolution must be positive")
	ErrUnsupportedWiring  = errors.New("unsupported wiring mode")
)

// MinConstantSpeed is the floor used when constant-speed mode is requested
// with a zero speed, in steps/ms.
const MinConstantSpeed = 0.1

// ParamError reports which acceleration parameter was rejected.
type ParamError struct {
	Reason string
}

func (e *ParamError) Error() string {
	return "invalid parameter: " + e.Reason
}

func (e *ParamError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// KinematicParams holds the ramp constants of a motor. Values are never
// modified after construction; the step loop picks up replacements
// atomically.
type KinematicParams struct {
	VMin      float64 // steps/ms
	VMax      float64 // steps/ms
	Acc       float64 // steps/ms²
	RampSteps int64   // whole steps spent going from VMax down to VMin
	RampMs    float64
	Smoothing bool
}

// RPMToStepsPerMs converts revolutions per minute into steps per millisecond.
func RPMToStepsPerMs(rpm float64, stepsPerRev int64) float64 {
	return rpm * float64(stepsPerRev) / 60 / 1000
}

// NewKinematicParams validates a ramp given in rev/min and milliseconds and
// derives its constants. Nothing is derived until every argument passed.
func NewKinematicParams(stepsPerRev int64, minRPM, maxRPM float64, rampMs int64) (*KinematicParams, error) {
	switch {
	case stepsPerRev <= 0:
		return nil, ErrStepsPerRevolution
	case !(minRPM > 0):
		return nil, &ParamError{Reason: "minimum speed must be positive"}
	case !(maxRPM > 0):
		return nil, &ParamError{Reason: "maximum speed must be positive"}
	case rampMs <= 0:
		return nil, &ParamError{Reason: "ramp time must be positive"}
	case minRPM >= maxRPM:
		return nil, &ParamError{Reason: "minimum speed must be below maximum speed"}
	}

	vmin := RPMToStepsPerMs(minRPM, stepsPerRev)
	vmax := RPMToStepsPerMs(maxRPM, stepsPerRev)
	ramp := float64(rampMs)
	acc := (vmax - vmin) / ramp

	return &KinematicParams{
		VMin:      vmin,
		VMax:      vmax,
		Acc:       acc,
		RampSteps: int64(-acc/2*ramp*ramp + vmax*ramp + 1),
		RampMs:    ramp,
		Smoothing: true,
	}, nil
}

// NewConstantSpeed builds parameters for fixed-cadence stepping. A speed of
// zero (or below) selects MinConstantSpeed.
func NewConstantSpeed(stepsPerRev int64, rpm float64) *KinematicParams {
	v := MinConstantSpeed
	if rpm > 0 && stepsPerRev > 0 {
		v = RPMToStepsPerMs(rpm, stepsPerRev)
	}
	return &KinematicParams{VMin: v, VMax: v}
}

// StepDelay is the constant-speed interval between steps in ms.
func (p *KinematicParams) StepDelay() float64 {
	return 1 / p.VMin
}

// clampSpeed keeps v inside [VMin, VMax].
func (p *KinematicParams) clampSpeed(v float64) float64 {
	if v < p.VMin {
		return p.VMin
	}
	if v > p.VMax {
		return p.VMax
	}
	return v
}
