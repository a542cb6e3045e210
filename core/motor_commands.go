package core

import (
	"math"

	"smoothstep/protocol"
)

// Result codes carried by motor_result.
const (
	ResultOK uint8 = iota
	ResultInvalid
	ResultBusy
	ResultUnknownMotor
)

// Responder sends a device to host message.
type Responder func(cmdID uint16, args func(protocol.OutputBuffer)) error

// MotorCommandIDs are the registry IDs of the remote motor commands.
type MotorCommandIDs struct {
	GetInfo      uint16
	MoveRelative uint16
	MoveAbsolute uint16
	Stop         uint16
	ReturnOrigin uint16
	ResetOrigin  uint16
	SetAccel     uint16
	SetConstant  uint16
	Query        uint16

	Info   uint16
	Result uint16
	State  uint16
}

// MotorCommandTable returns the IDs RegisterMotorCommands assigns on an
// empty registry. Hosts use it instead of fetching a dictionary.
func MotorCommandTable() MotorCommandIDs {
	return RegisterMotorCommands(NewCommandRegistry(), nil, nil)
}

// RegisterMotorCommands adds the remote motor surface to r. Motors are
// addressed by their index in motors. Registration order is fixed; a host
// that calls MotorCommandTable gets the same IDs.
func RegisterMotorCommands(r *CommandRegistry, motors []*Motor, send Responder) MotorCommandIDs {
	h := &motorHandlers{motors: motors, send: send}
	ids := &h.ids

	ids.GetInfo = r.Register("get_info", "", h.getInfo)
	ids.MoveRelative = r.Register("motor_move_relative", "oid=%c delta=%li", h.moveRelative)
	ids.MoveAbsolute = r.Register("motor_move_absolute", "oid=%c target=%li", h.moveAbsolute)
	ids.Stop = r.Register("motor_stop", "oid=%c", h.stop)
	ids.ReturnOrigin = r.Register("motor_return_origin", "oid=%c full=%c", h.returnOrigin)
	ids.ResetOrigin = r.Register("motor_reset_origin", "oid=%c", h.resetOrigin)
	ids.SetAccel = r.Register("motor_set_accel", "oid=%c min_mrpm=%u max_mrpm=%u ramp_ms=%u", h.setAccel)
	ids.SetConstant = r.Register("motor_set_constant", "oid=%c mrpm=%u", h.setConstant)
	ids.Query = r.Register("motor_query", "oid=%c", h.query)

	ids.Info = r.RegisterResponse("info", "version=%u motors=%c")
	ids.Result = r.RegisterResponse("motor_result", "oid=%c code=%c")
	ids.State = r.RegisterResponse("motor_state",
		"oid=%c pos=%li target=%li dir=%i moving=%c speed_ums=%u decel=%c spr=%u")

	return *ids
}

type motorHandlers struct {
	motors []*Motor
	send   Responder
	ids    MotorCommandIDs
}

// motor decodes an oid. A nil motor with no error means the oid is unknown
// and a result has already been sent.
func (h *motorHandlers) motor(data *[]byte) (uint8, *Motor, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, nil, err
	}
	oid := uint8(v)
	if int(oid) >= len(h.motors) || h.motors[oid] == nil {
		return oid, nil, h.result(oid, ResultUnknownMotor)
	}
	return oid, h.motors[oid], nil
}

func (h *motorHandlers) result(oid uint8, code uint8) error {
	if h.send == nil {
		return nil
	}
	return h.send(h.ids.Result, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(oid))
		protocol.EncodeVLQUint(out, uint32(code))
	})
}

func (h *motorHandlers) getInfo(data *[]byte) error {
	if h.send == nil {
		return nil
	}
	return h.send(h.ids.Info, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, Version)
		protocol.EncodeVLQUint(out, uint32(len(h.motors)))
	})
}

func (h *motorHandlers) moveRelative(data *[]byte) error {
	oid, m, err := h.motor(data)
	if err != nil {
		return err
	}
	delta, err := protocol.DecodeVLQInt64(data)
	if err != nil || m == nil {
		return err
	}
	m.MoveRelative(delta)
	return h.result(oid, ResultOK)
}

func (h *motorHandlers) moveAbsolute(data *[]byte) error {
	oid, m, err := h.motor(data)
	if err != nil {
		return err
	}
	target, err := protocol.DecodeVLQInt64(data)
	if err != nil || m == nil {
		return err
	}
	m.MoveAbsolute(target)
	return h.result(oid, ResultOK)
}

func (h *motorHandlers) stop(data *[]byte) error {
	oid, m, err := h.motor(data)
	if err != nil || m == nil {
		return err
	}
	m.Stop()
	return h.result(oid, ResultOK)
}

func (h *motorHandlers) returnOrigin(data *[]byte) error {
	oid, m, err := h.motor(data)
	if err != nil {
		return err
	}
	full, err := protocol.DecodeVLQUint(data)
	if err != nil || m == nil {
		return err
	}
	m.ReturnToOrigin(full != 0)
	return h.result(oid, ResultOK)
}

// resetOrigin never waits: the link must keep serving while the motor
// runs, so a moving motor answers busy.
func (h *motorHandlers) resetOrigin(data *[]byte) error {
	oid, m, err := h.motor(data)
	if err != nil || m == nil {
		return err
	}
	if err := m.TryResetOrigin(); err != nil {
		return h.result(oid, ResultBusy)
	}
	return h.result(oid, ResultOK)
}

func (h *motorHandlers) setAccel(data *[]byte) error {
	oid, m, err := h.motor(data)
	if err != nil {
		return err
	}
	var args [3]uint32
	for i := range args {
		if args[i], err = protocol.DecodeVLQUint(data); err != nil {
			return err
		}
	}
	if m == nil {
		return nil
	}
	minRPM := float64(args[0]) / 1000
	maxRPM := float64(args[1]) / 1000
	if err := m.ConfigureAcceleration(minRPM, maxRPM, int64(args[2])); err != nil {
		return h.result(oid, ResultInvalid)
	}
	return h.result(oid, ResultOK)
}

func (h *motorHandlers) setConstant(data *[]byte) error {
	oid, m, err := h.motor(data)
	if err != nil {
		return err
	}
	mrpm, err := protocol.DecodeVLQUint(data)
	if err != nil || m == nil {
		return err
	}
	m.DisableAcceleration(float64(mrpm) / 1000)
	return h.result(oid, ResultOK)
}

func (h *motorHandlers) query(data *[]byte) error {
	oid, m, err := h.motor(data)
	if err != nil || m == nil || h.send == nil {
		return err
	}
	s := m.Snapshot()
	spr := m.Config().StepsPerRevolution
	return h.send(h.ids.State, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(oid))
		protocol.EncodeVLQInt64(out, s.Position)
		protocol.EncodeVLQInt64(out, s.Target)
		protocol.EncodeVLQInt(out, int32(s.Direction))
		protocol.EncodeVLQUint(out, boolArg(s.Moving))
		protocol.EncodeVLQUint(out, uint32(math.Round(s.Speed*1000)))
		protocol.EncodeVLQUint(out, boolArg(s.Decelerating))
		protocol.EncodeVLQUint(out, uint32(spr))
	})
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
