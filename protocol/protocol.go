// Package protocol implements the framed serial link between a host and
// the motor controller: Klipper-style frames carrying VLQ encoded commands.
package protocol

// Frame layout: len, seq, payload..., crc_hi, crc_lo, sync.
const (
	MessageMax         = 512 // output scratch size; several frames fit
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10

	MessageSeqMask = 0x0F
)

// Message is one verified frame as seen by the host.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // without header and trailer
	CRC      uint16
}

// NextSequence returns the sequence that follows seq.
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
