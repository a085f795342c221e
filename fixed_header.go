package mqttwire

import (
	"errors"
	"io"
)

// PacketType is the control packet type carried in the high nibble of the
// first header byte.
type PacketType byte

const (
	PacketCONNECT     PacketType = 1
	PacketCONNACK     PacketType = 2
	PacketPUBLISH     PacketType = 3
	PacketPUBACK      PacketType = 4
	PacketPUBREC      PacketType = 5
	PacketPUBREL      PacketType = 6
	PacketPUBCOMP     PacketType = 7
	PacketSUBSCRIBE   PacketType = 8
	PacketSUBACK      PacketType = 9
	PacketUNSUBSCRIBE PacketType = 10
	PacketUNSUBACK    PacketType = 11
	PacketPINGREQ     PacketType = 12
	PacketPINGRESP    PacketType = 13
	PacketDISCONNECT  PacketType = 14
	PacketAUTH        PacketType = 15
)

var packetTypeNames = [...]string{
	PacketCONNECT:     "CONNECT",
	PacketCONNACK:     "CONNACK",
	PacketPUBLISH:     "PUBLISH",
	PacketPUBACK:      "PUBACK",
	PacketPUBREC:      "PUBREC",
	PacketPUBREL:      "PUBREL",
	PacketPUBCOMP:     "PUBCOMP",
	PacketSUBSCRIBE:   "SUBSCRIBE",
	PacketSUBACK:      "SUBACK",
	PacketUNSUBSCRIBE: "UNSUBSCRIBE",
	PacketUNSUBACK:    "UNSUBACK",
	PacketPINGREQ:     "PINGREQ",
	PacketPINGRESP:    "PINGRESP",
	PacketDISCONNECT:  "DISCONNECT",
	PacketAUTH:        "AUTH",
}

// String returns the packet type name.
func (p PacketType) String() string {
	if p.Valid() {
		return packetTypeNames[p]
	}
	return "UNKNOWN"
}

// Valid reports whether p is a defined packet type.
func (p PacketType) Valid() bool {
	return p >= PacketCONNECT && p <= PacketAUTH
}

// requiredFlags returns the fixed flag nibble of a packet type. PUBLISH has
// variable flags and is handled separately.
func (p PacketType) requiredFlags() byte {
	switch p {
	case PacketPUBREL, PacketSUBSCRIBE, PacketUNSUBSCRIBE:
		return 0x02
	default:
		return 0x00
	}
}

// Fixed header errors.
var (
	ErrInvalidPacketType  = errors.New("invalid packet type")
	ErrInvalidPacketFlags = errors.New("invalid packet flags")
)

// FixedHeader is the first part of every control packet: one byte of type and
// flags followed by the remaining length as a variable byte integer.
type FixedHeader struct {
	PacketType      PacketType
	Flags           byte
	RemainingLength uint32
}

// Encode writes the fixed header to w.
func (h *FixedHeader) Encode(w io.Writer) (int, error) {
	if !h.PacketType.Valid() {
		return 0, ErrInvalidPacketType
	}

	var buf [1 + maxVarintBytes]byte
	buf[0] = byte(h.PacketType)<<4 | h.Flags&0x0F

	n, err := putVarint(buf[1:], h.RemainingLength)
	if err != nil {
		return 0, err
	}
	return w.Write(buf[:1+n])
}

// Decode reads the fixed header from r.
func (h *FixedHeader) Decode(r io.Reader) (int, error) {
	first, n, err := decodeByte(r)
	if err != nil {
		if n == 0 {
			// a clean EOF between packets is not a framing error
			return n, io.EOF
		}
		return n, err
	}

	h.PacketType = PacketType(first >> 4)
	h.Flags = first & 0x0F
	if !h.PacketType.Valid() {
		return n, ErrInvalidPacketType
	}

	length, n2, err := decodeVarint(r)
	n += n2
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return n, err
	}

	h.RemainingLength = length
	return n, h.ValidateFlags()
}

// Size returns the encoded size of the fixed header.
func (h *FixedHeader) Size() int {
	return 1 + varintSize(h.RemainingLength)
}

// ValidateFlags checks the flag nibble against the packet type.
func (h *FixedHeader) ValidateFlags() error {
	if !h.PacketType.Valid() {
		return ErrInvalidPacketType
	}
	if h.PacketType == PacketPUBLISH {
		if (h.Flags>>1)&0x03 == 0x03 {
			return ErrInvalidPacketFlags
		}
		return nil
	}
	if h.Flags != h.PacketType.requiredFlags() {
		return ErrInvalidPacketFlags
	}
	return nil
}
