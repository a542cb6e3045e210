package protocol

import "testing"

func TestCRC16(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", []byte{}, 0xFFFF},
		{"check string", []byte("123456789"), 0x6F91},
		{"ack 0x10", []byte{5, 0x10}, 0x9E81},
		{"ack 0x11", []byte{5, 0x11}, 0x8F08},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CRC16(tc.data); got != tc.want {
				t.Errorf("CRC16(%v) = 0x%04X, want 0x%04X", tc.data, got, tc.want)
			}
		})
	}
}

func TestCRC16Different(t *testing.T) {
	if CRC16([]byte{0x01, 0x02, 0x03}) == CRC16([]byte{0x01, 0x02, 0x04}) {
		t.Error("single byte change did not change the CRC")
	}
}
