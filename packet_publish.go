package mqttwire

import (
	"errors"
	"io"
	"strings"
)

// PUBLISH packet errors.
var (
	ErrTopicNameEmpty    = errors.New("topic name cannot be empty")
	ErrTopicNameWildcard = errors.New("topic name cannot contain wildcards")
	ErrInvalidQoS        = errors.New("invalid QoS level")
	ErrPacketIDRequired  = errors.New("packet identifier required for QoS > 0")
	ErrDupWithoutQoS     = errors.New("DUP flag set on QoS 0 PUBLISH")
)

// PublishPacket carries an application message.
type PublishPacket struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retain   bool
	DUP      bool
	PacketID uint16 // only for QoS > 0
	Props    Properties
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType { return PacketPUBLISH }

// Properties returns a pointer to the packet's properties.
func (p *PublishPacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *PublishPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PublishPacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *PublishPacket) flags() byte {
	var flags byte
	if p.DUP {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}
	return flags
}

func (p *PublishPacket) fixedLen() int {
	n := stringSize(p.Topic)
	if p.QoS > 0 {
		n += 2
	}
	return n
}

func (p *PublishPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return planWithProperties(p.flags(), p.fixedLen(), len(p.Payload), &p.Props, maxPacketSize, false)
}

func (p *PublishPacket) writeBody(w io.Writer, plan *encodePlan) error {
	if _, err := encodeString(w, p.Topic); err != nil {
		return err
	}
	if p.QoS > 0 {
		if _, err := encodeUint16(w, p.PacketID); err != nil {
			return err
		}
	}
	if _, err := writeProperties(w, plan.props, plan.size.propertyLength); err != nil {
		return err
	}
	_, err := w.Write(p.Payload)
	return err
}

// Encode writes the packet to w.
func (p *PublishPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r. The payload is everything after the
// property block.
func (p *PublishPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketPUBLISH); err != nil {
		return 0, err
	}

	p.DUP = header.Flags&0x08 != 0
	p.QoS = (header.Flags >> 1) & 0x03
	p.Retain = header.Flags&0x01 != 0
	if p.QoS > 2 {
		return 0, ErrInvalidQoS
	}

	var total int
	var n int
	var err error

	p.Topic, n, err = decodeString(r)
	total += n
	if err != nil {
		return total, err
	}

	if p.QoS > 0 {
		p.PacketID, n, err = decodeUint16(r)
		total += n
		if err != nil {
			return total, err
		}
	}

	n, err = p.Props.Decode(r)
	total += n
	if err != nil {
		return total, err
	}
	if err := p.Props.ValidateFor(PropCtxPUBLISH); err != nil {
		return total, err
	}

	payloadLen := int(header.RemainingLength) - total
	if payloadLen < 0 {
		return total, ErrMalformedPacket
	}
	p.Payload = make([]byte, payloadLen)
	n, err = readFull(r, p.Payload)
	total += n
	return total, err
}

// Validate validates the packet contents.
func (p *PublishPacket) Validate() error {
	if p.QoS > 2 {
		return ErrInvalidQoS
	}
	if p.QoS > 0 && p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	if p.QoS == 0 && p.DUP {
		return ErrDupWithoutQoS
	}
	if p.Topic == "" && !p.Props.Has(PropTopicAlias) {
		return ErrTopicNameEmpty
	}
	if strings.ContainsAny(p.Topic, "+#") {
		return ErrTopicNameWildcard
	}
	if err := validString(p.Topic); err != nil {
		return err
	}
	return p.Props.ValidateFor(PropCtxPUBLISH)
}
