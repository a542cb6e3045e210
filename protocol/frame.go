package protocol

import "errors"

// ErrFrameTooLong is returned when a payload does not fit one frame.
var ErrFrameTooLong = errors.New("frame exceeds maximum length")

// EncodeFrame writes one complete frame with sequence seq. The payload is
// produced by body; nothing is written if it does not fit.
func EncodeFrame(output OutputBuffer, seq uint8, body func(OutputBuffer)) error {
	var s ScratchOutput
	s.Output([]byte{0, seq})
	if body != nil {
		body(&s)
	}

	n := s.CurPosition() + MessageTrailerSize
	if n > MessageLengthMax || s.Overflowed() {
		return ErrFrameTooLong
	}
	s.Update(MessagePositionLen, uint8(n))

	crc := CRC16(s.Result())
	s.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	output.Output(s.Result())
	return nil
}

// frameReader splits a byte stream into verified frames. After any
// malformed frame it discards input up to the next sync byte.
type frameReader struct {
	synced bool

	// hostOnly rejects frames without the host destination bits.
	hostOnly bool
	// onResync runs each time the reader regains synchronisation.
	onResync func()

	errors uint32
}

func newFrameReader(hostOnly bool) frameReader {
	return frameReader{synced: true, hostOnly: hostOnly}
}

// scan calls emit for every complete frame in data and returns the number
// of bytes consumed. A partial frame at the end is left for the next call.
func (r *frameReader) scan(data []byte, emit func(seq uint8, payload []byte, crc uint16)) int {
	total := len(data)

	for len(data) > 0 {
		if !r.synced {
			i := indexSync(data)
			if i < 0 {
				data = nil
				break
			}
			data = data[i+1:]
			r.synced = true
			if r.onResync != nil {
				r.onResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			r.lose()
			continue
		}
		seq := data[MessagePositionSeq]
		if r.hostOnly && seq&^MessageSeqMask != MessageDest {
			r.lose()
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			r.lose()
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			r.lose()
			continue
		}

		payload := data[MessageHeaderSize : msgLen-MessageTrailerSize]
		data = data[msgLen:]
		emit(seq, payload, frameCRC)
	}

	return total - len(data)
}

func (r *frameReader) lose() {
	r.synced = false
	r.errors++
}

func indexSync(data []byte) int {
	for i, b := range data {
		if b == MessageValueSync {
			return i
		}
	}
	return -1
}

var errHandlerPanic = errors.New("command handler panicked")
