package core

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"smoothstep/protocol"
)

type linkHarness struct {
	t      *testing.T
	host   *protocol.HostTransport
	ids    MotorCommandIDs
	motors []*Motor
}

func newLinkHarness(t *testing.T) *linkHarness {
	t.Helper()
	m, _, _ := newAccelMotor(t)
	motors := []*Motor{m}

	hostConn, devConn := net.Pipe()
	link := NewLink(motors)
	served := make(chan error, 1)
	go func() { served <- link.Serve(context.Background(), devConn) }()

	host := protocol.NewHostTransport(hostConn)
	t.Cleanup(func() {
		host.Close()
		devConn.Close()
		<-served
	})

	return &linkHarness{t: t, host: host, ids: MotorCommandTable(), motors: motors}
}

// call sends one command and returns the response it produced, decoded
// into its ID and VLQ arguments.
func (h *linkHarness) call(id uint16, args ...int64) (uint16, []int64) {
	h.t.Helper()
	h.host.DrainResponses()
	err := h.host.SendCommand(id, func(out protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQInt64(out, a)
		}
	})
	if err != nil {
		h.t.Fatalf("send %d: %v", id, err)
	}
	msg, err := h.host.ReceiveResponse(time.Second)
	if err != nil {
		h.t.Fatalf("response to %d: %v", id, err)
	}

	data := msg.Payload
	respID, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		h.t.Fatal(err)
	}
	var values []int64
	for len(data) > 0 {
		v, err := protocol.DecodeVLQInt64(&data)
		if err != nil {
			h.t.Fatal(err)
		}
		values = append(values, v)
	}
	return uint16(respID), values
}

func (h *linkHarness) expectResult(id uint16, code uint8, args ...int64) {
	h.t.Helper()
	respID, values := h.call(id, args...)
	if respID != h.ids.Result || len(values) != 2 || values[1] != int64(code) {
		h.t.Errorf("command %d%v: response %d %v, want result code %d", id, args, respID, values, code)
	}
}

func TestMotorCommandTableMatchesLink(t *testing.T) {
	table := MotorCommandTable()
	link := NewLink(nil)
	if table != link.IDs {
		t.Errorf("host table %+v differs from device %+v", table, link.IDs)
	}
	if id, ok := link.Registry.Lookup("motor_query"); !ok || id != table.Query {
		t.Errorf("motor_query registered as %d", id)
	}
}

func TestLinkCommands(t *testing.T) {
	h := newLinkHarness(t)
	m := h.motors[0]

	respID, values := h.call(h.ids.GetInfo)
	if respID != h.ids.Info || len(values) != 2 || values[0] != Version || values[1] != 1 {
		t.Errorf("get_info: %d %v", respID, values)
	}

	h.expectResult(h.ids.MoveRelative, ResultOK, 0, 500)
	h.expectResult(h.ids.MoveRelative, ResultOK, 0, -1<<35)
	if got := m.Target(); got != 500-1<<35 {
		t.Errorf("Target = %d after relative moves", got)
	}

	h.expectResult(h.ids.MoveAbsolute, ResultOK, 0, -42)
	if got := m.Target(); got != -42 {
		t.Errorf("Target = %d, want -42", got)
	}

	// nothing polls the motor, so it stays busy
	h.expectResult(h.ids.ResetOrigin, ResultBusy, 0)

	h.expectResult(h.ids.SetAccel, ResultInvalid, 0, 15000, 3000, 500)
	h.expectResult(h.ids.SetAccel, ResultOK, 0, 6000, 30000, 250)
	if p := m.Params(); p == nil || p.RampMs != 250 {
		t.Errorf("params after set_accel: %+v", p)
	}

	h.expectResult(h.ids.SetConstant, ResultOK, 0, 15000)
	if p := m.Params(); p == nil || p.Smoothing {
		t.Errorf("params after set_constant: %+v", p)
	}

	respID, values = h.call(h.ids.Query, 0)
	if respID != h.ids.State || len(values) != 8 {
		t.Fatalf("motor_query: %d %v", respID, values)
	}
	if values[1] != 0 || values[2] != -42 || values[4] != 1 || values[7] != testStepsPerRev {
		t.Errorf("motor_state = %v", values)
	}

	h.expectResult(h.ids.Stop, ResultOK, 0)
	if m.Target() != 0 {
		t.Errorf("Target after stop = %d, want 0", m.Target())
	}

	h.expectResult(h.ids.ReturnOrigin, ResultOK, 0, 1)
	h.expectResult(h.ids.Stop, ResultUnknownMotor, 3)
	h.expectResult(h.ids.MoveRelative, ResultUnknownMotor, 3, 10)

	// the link is still in step after the unknown motor
	respID, _ = h.call(h.ids.GetInfo)
	if respID != h.ids.Info {
		t.Errorf("get_info after errors answered %d", respID)
	}
}

func TestLinkFeedAndFlush(t *testing.T) {
	m, _, _ := newAccelMotor(t)
	link := NewLink([]*Motor{m})

	var frame protocol.SliceOutput
	err := protocol.EncodeFrame(&frame, protocol.MessageDest, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(link.IDs.MoveRelative))
		protocol.EncodeVLQUint(out, 0)
		protocol.EncodeVLQInt64(out, 12)
	})
	if err != nil {
		t.Fatal(err)
	}

	// split delivery
	raw := frame.Bytes()
	link.Feed(raw[:3])
	if len(link.Pending()) != 0 {
		t.Fatal("output before the frame was complete")
	}
	link.Feed(raw[3:])

	if m.Target() != 12 {
		t.Errorf("Target = %d, want 12", m.Target())
	}

	var out bytes.Buffer
	if err := link.Flush(&out); err != nil {
		t.Fatal(err)
	}
	got := out.Bytes()
	if len(got) < 2*protocol.MessageLengthMin {
		t.Fatalf("flushed %x, want result and ACK", got)
	}
	ack := got[len(got)-protocol.MessageLengthMin:]
	if ack[protocol.MessagePositionSeq] != 0x11 {
		t.Errorf("ACK sequence 0x%02x, want 0x11", ack[protocol.MessagePositionSeq])
	}
	if len(link.Pending()) != 0 {
		t.Error("Flush left output pending")
	}
}
