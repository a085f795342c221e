package mqttwire

import (
	"errors"
	"io"
)

// ErrInvalidConnackFlags is returned for reserved acknowledge flag bits, or
// for session present on a failed connection.
var ErrInvalidConnackFlags = errors.New("invalid CONNACK flags")

// ConnackPacket is the server's answer to CONNECT.
type ConnackPacket struct {
	SessionPresent bool
	ReasonCode     ReasonCode
	Props          Properties
}

// Type returns the packet type.
func (p *ConnackPacket) Type() PacketType { return PacketCONNACK }

// Properties returns a pointer to the packet's properties.
func (p *ConnackPacket) Properties() *Properties { return &p.Props }

// AuthMethod returns the authentication method property, if any.
func (p *ConnackPacket) AuthMethod() string { return p.Props.GetString(PropAuthenticationMethod) }

// MaximumPacketSize returns the server's maximum packet size, zero if unset.
func (p *ConnackPacket) MaximumPacketSize() uint32 { return p.Props.GetUint32(PropMaximumPacketSize) }

func (p *ConnackPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return planWithProperties(0, 2, 0, &p.Props, maxPacketSize, true)
}

func (p *ConnackPacket) writeBody(w io.Writer, plan *encodePlan) error {
	var flags byte
	if p.SessionPresent {
		flags = 0x01
	}
	if _, err := w.Write([]byte{flags, byte(p.ReasonCode)}); err != nil {
		return err
	}
	_, err := writeProperties(w, plan.props, plan.size.propertyLength)
	return err
}

// Encode writes the packet to w.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *ConnackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketCONNACK); err != nil {
		return 0, err
	}

	var total int
	flags, n, err := decodeByte(r)
	total += n
	if err != nil {
		return total, err
	}
	if flags&0xFE != 0 {
		return total, ErrInvalidConnackFlags
	}
	p.SessionPresent = flags&0x01 != 0

	code, n, err := decodeByte(r)
	total += n
	if err != nil {
		return total, err
	}
	p.ReasonCode = ReasonCode(code)

	if header.RemainingLength > 2 {
		n, err = p.Props.Decode(r)
		total += n
		if err != nil {
			return total, err
		}
		if err := p.Props.ValidateFor(PropCtxCONNACK); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Validate validates the packet contents.
func (p *ConnackPacket) Validate() error {
	if !p.ReasonCode.ValidFor(PacketCONNACK) {
		return ErrInvalidReasonCode
	}
	if p.ReasonCode != ReasonSuccess && p.SessionPresent {
		return ErrInvalidConnackFlags
	}
	return p.Props.ValidateFor(PropCtxCONNACK)
}
