package mqttwire

import (
	"errors"
	"io"
)

// Packet errors shared by several packet types.
var (
	ErrInvalidPacketID   = errors.New("invalid packet identifier")
	ErrInvalidReasonCode = errors.New("invalid reason code for packet type")
	ErrProtocolViolation = errors.New("protocol violation")
)

// Packet is an MQTT 5 control packet.
type Packet interface {
	// Type returns the packet type.
	Type() PacketType

	// Encode writes the complete packet, fixed header included, to w.
	Encode(w io.Writer) (int, error)

	// Decode reads the packet body from r. The fixed header has already
	// been read.
	Decode(r io.Reader, header FixedHeader) (int, error)

	// Validate checks the packet contents.
	Validate() error
}

// PacketWithID is implemented by packets that carry a packet identifier.
type PacketWithID interface {
	Packet
	GetPacketID() uint16
	SetPacketID(id uint16)
}

// PacketWithProperties is implemented by packets that carry properties.
type PacketWithProperties interface {
	Packet
	Properties() *Properties
}

// encode is the Encode implementation shared by all packet types.
func encode(w io.Writer, p encodable) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return encodePacket(w, p, 0)
}

func checkHeader(header FixedHeader, t PacketType) error {
	if header.PacketType != t {
		return ErrInvalidPacketType
	}
	if header.Flags != t.requiredFlags() && t != PacketPUBLISH {
		return ErrInvalidPacketFlags
	}
	return nil
}
