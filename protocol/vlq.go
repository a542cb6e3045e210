package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqMaxBytes is enough for any int64.
const vlqMaxBytes = 10

// vlqFits reports whether v can be sent in n groups of 7 bits. The first
// group carries the sign in its top two bits, so the range is asymmetric.
func vlqFits(v int64, n int) bool {
	shift := 7*n - 2
	if shift >= 63 {
		return true
	}
	return -(int64(1)<<shift) <= v && v < int64(3)<<shift
}

// EncodeVLQInt64 writes v most significant group first. Values that fit
// an int32 encode exactly as Klipper encodes them.
func EncodeVLQInt64(output OutputBuffer, v int64) {
	n := 1
	for n < vlqMaxBytes && !vlqFits(v, n) {
		n++
	}

	var buf [vlqMaxBytes]byte
	for i := 0; i < n-1; i++ {
		shift := uint(7 * (n - 1 - i))
		buf[i] = byte((v>>shift)&0x7F) | 0x80
	}
	buf[n-1] = byte(v & 0x7F)
	output.Output(buf[:n])
}

// DecodeVLQInt64 reads one value and advances data past it.
func DecodeVLQInt64(data *[]byte) (int64, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint64((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint64(0x1F)
	}

	for n := 1; c&0x80 != 0; n++ {
		if n >= vlqMaxBytes {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = uint64((*data)[0])
		*data = (*data)[1:]
		v = v<<7 | c&0x7F
	}

	return int64(v), nil
}

// EncodeVLQInt encodes a signed 32 bit value.
func EncodeVLQInt(output OutputBuffer, v int32) {
	EncodeVLQInt64(output, int64(v))
}

// EncodeVLQUint encodes v the way Klipper does, as its int32 bit pattern.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt64(output, int64(int32(v)))
}

// DecodeVLQInt decodes a signed 32 bit value.
func DecodeVLQInt(data *[]byte) (int32, error) {
	v, err := DecodeVLQInt64(data)
	return int32(v), err
}

// DecodeVLQUint decodes an unsigned 32 bit value.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt64(data)
	return uint32(v), err
}

// EncodeVLQBytes encodes a byte array with length prefix
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes decodes a length-prefixed byte array. The result aliases
// data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	length, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < length {
		return nil, ErrBufferTooSmall
	}
	result := (*data)[:length]
	*data = (*data)[length:]
	return result, nil
}

// EncodeVLQString encodes a string with length prefix
func EncodeVLQString(output OutputBuffer, s string) {
	EncodeVLQBytes(output, []byte(s))
}

// DecodeVLQString decodes a length-prefixed string
func DecodeVLQString(data *[]byte) (string, error) {
	b, err := DecodeVLQBytes(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
