package protocol

import "sync/atomic"

// CommandHandler handles one decoded command. It must consume its
// arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device end of the link. It verifies frames from the
// host, dispatches the commands they carry, and answers every frame with
// an ACK holding the next sequence it expects. Responses written while a
// frame is dispatched precede that frame's ACK.
type Transport struct {
	nextSequence atomic.Uint32
	reader       frameReader

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func()
	errorCallback func(error)
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		reader:  newFrameReader(true),
		output:  output,
		handler: handler,
	}
	t.nextSequence.Store(MessageDest)
	t.reader.onResync = t.encodeAckNak
	return t
}

// Receive consumes every complete frame in input.
func (t *Transport) Receive(input InputBuffer) {
	consumed := t.reader.scan(input.Data(), t.handleFrame)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (t *Transport) handleFrame(seq uint8, payload []byte, _ uint16) {
	expected := uint8(t.nextSequence.Load())
	if seq == MessageDest && expected != MessageDest {
		// the host restarted its sequence
		t.nextSequence.Store(MessageDest)
		expected = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}

	if seq == expected {
		t.nextSequence.Store(uint32(NextSequence(seq)))
		if err := t.parseFrame(payload); err != nil && t.errorCallback != nil {
			t.errorCallback(err)
		}
	}
	// a mismatched sequence gets the same reply, which the host reads as NAK
	t.encodeAckNak()
}

func (t *Transport) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.reader.lose()
			err = errHandlerPanic
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.reader.lose()
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			// the rest of the frame cannot be located
			return err
		}
	}
	return nil
}

func (t *Transport) encodeAckNak() {
	_ = EncodeFrame(t.output, uint8(t.nextSequence.Load()), nil)
}

// SendCommand encodes a device to host message.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return EncodeFrame(t.output, uint8(t.nextSequence.Load()), func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns to the power-on state.
func (t *Transport) Reset() {
	t.reader = newFrameReader(true)
	t.reader.onResync = t.encodeAckNak
	t.nextSequence.Store(MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// FrameErrors counts frames dropped for bad length, sequence bits or CRC.
func (t *Transport) FrameErrors() uint32 { return t.reader.errors }

// SetResetCallback sets a callback for when the host restarts its sequence.
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetErrorCallback receives handler and decoding errors.
func (t *Transport) SetErrorCallback(callback func(error)) {
	t.errorCallback = callback
}
