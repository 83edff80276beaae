// Package packet implements the fixed-layout wire codec for fragment
// records: a 9-byte application header plus a variable-length payload.
package packet

import (
	"encoding/binary"
	"fmt"
)

// MaxPayloadLen is the largest payload a fragment can carry:
// 1500 (path MTU) - 20 (IP) - 8 (UDP) - 9 (application header).
const MaxPayloadLen = 1500 - 20 - 8 - 9

// HeaderLen is the fixed application header size: seq(4) + offset(2) +
// length(2) + indicator(1).
const HeaderLen = 9

// PacketType identifies which link a fragment travels on and whether it
// terminates the datagram on that link.
type PacketType uint8

const (
	FirstLink             PacketType = 0
	SecondLink            PacketType = 1
	LastPacketInFirstLink PacketType = 2
	LastPacketInSecondLink PacketType = 3
)

// LinkID returns the low bit: 0 for the first link, 1 for the second.
func (t PacketType) LinkID() int { return int(t) & 1 }

// IsTerminator reports whether this packet type carries the
// last-in-link terminator bit.
func (t PacketType) IsTerminator() bool { return (int(t)>>1)&1 == 1 }

// DecodePacketType converts a raw indicator byte into a PacketType.
// Indicator encoding is total for {0,1,2,3}; any other value is a
// protocol violation.
func DecodePacketType(indicator uint8) (PacketType, error) {
	if indicator > 3 {
		return 0, fmt.Errorf("packet: invalid indicator %d", indicator)
	}
	return PacketType(indicator), nil
}

// Fragment is one application-level fragment record, header plus
// payload, in memory. Only Header()+Length bytes are transmitted.
type Fragment struct {
	Seq       uint32
	Offset    uint16
	Length    uint16
	Indicator uint8
	Payload   [MaxPayloadLen]byte
}

// NewFragment allocates a fragment with the test-fill payload pattern:
// the i-th byte equals i mod 256.
func NewFragment() *Fragment {
	f := &Fragment{}
	for i := range f.Payload {
		f.Payload[i] = byte(i % 256)
	}
	return f
}

// SetLength sets the fragment's payload length in bytes.
func (f *Fragment) SetLength(n uint16) { f.Length = n }

// SetOffset sets the fragment's offset within its datagram.
func (f *Fragment) SetOffset(off uint16) { f.Offset = off }

// SetIndicator sets the raw indicator byte.
func (f *Fragment) SetIndicator(ind uint8) { f.Indicator = ind }

// PacketType decodes this fragment's indicator.
func (f *Fragment) PacketType() (PacketType, error) {
	return DecodePacketType(f.Indicator)
}

// Encode serializes the header and the first Length payload bytes into
// dst, which must have capacity for at least HeaderLen+Length bytes.
// Byte order is host-native (the system targets homogeneous x86-64
// endpoints).
func (f *Fragment) Encode(dst []byte) (int, error) {
	total := HeaderLen + int(f.Length)
	if len(dst) < total {
		return 0, fmt.Errorf("packet: dst too small: need %d, have %d", total, len(dst))
	}
	binary.NativeEndian.PutUint32(dst[0:4], f.Seq)
	binary.NativeEndian.PutUint16(dst[4:6], f.Offset)
	binary.NativeEndian.PutUint16(dst[6:8], f.Length)
	dst[8] = f.Indicator
	copy(dst[HeaderLen:total], f.Payload[:f.Length])
	return total, nil
}

// Decode parses a wire buffer into a fresh fragment. The buffer must be
// at least HeaderLen bytes and carry at least Length payload bytes
// following the header; any bytes beyond that are ignored.
func Decode(buf []byte) (*Fragment, error) {
	if len(buf) < HeaderLen {
		return nil, fmt.Errorf("packet: buffer too short: %d bytes", len(buf))
	}
	f := &Fragment{
		Seq:       binary.NativeEndian.Uint32(buf[0:4]),
		Offset:    binary.NativeEndian.Uint16(buf[4:6]),
		Length:    binary.NativeEndian.Uint16(buf[6:8]),
		Indicator: buf[8],
	}
	if _, err := f.PacketType(); err != nil {
		return nil, err
	}
	available := len(buf) - HeaderLen
	if int(f.Length) > available || int(f.Length) > MaxPayloadLen {
		return nil, fmt.Errorf("packet: length %d exceeds available %d", f.Length, available)
	}
	copy(f.Payload[:f.Length], buf[HeaderLen:HeaderLen+int(f.Length)])
	return f, nil
}

// NumFragments computes the number of fragments a datagram of size
// bytes splits into, and the length of the last (possibly partial)
// fragment.
func NumFragments(size int) (num int, lastLen int) {
	if size <= 0 {
		return 0, 0
	}
	num = (size + MaxPayloadLen - 1) / MaxPayloadLen
	lastLen = size % MaxPayloadLen
	if lastLen == 0 {
		lastLen = MaxPayloadLen
	}
	return num, lastLen
}
