package mqttwire

import (
	"errors"
	"io"
)

// ErrAuthMethodRequired is returned for an AUTH packet without an
// authentication method.
var ErrAuthMethodRequired = errors.New("AUTH packet requires an authentication method")

// AuthPacket carries one step of an enhanced authentication exchange.
// It is never shrunk to fit a maximum packet size.
type AuthPacket struct {
	ReasonCode ReasonCode
	Props      Properties
}

// Type returns the packet type.
func (p *AuthPacket) Type() PacketType { return PacketAUTH }

// Properties returns a pointer to the packet's properties.
func (p *AuthPacket) Properties() *Properties { return &p.Props }

// Method returns the authentication method property.
func (p *AuthPacket) Method() string { return p.Props.GetString(PropAuthenticationMethod) }

// Data returns the authentication data property.
func (p *AuthPacket) Data() []byte { return p.Props.GetBinary(PropAuthenticationData) }

func (p *AuthPacket) body() *reasonBody {
	return &reasonBody{packetType: PacketAUTH, reasonCode: p.ReasonCode, props: &p.Props}
}

func (p *AuthPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return p.body().plan(maxPacketSize)
}

func (p *AuthPacket) writeBody(w io.Writer, plan *encodePlan) error {
	return p.body().write(w, plan)
}

// Encode writes the packet to w.
func (p *AuthPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *AuthPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketAUTH); err != nil {
		return 0, err
	}
	body := reasonBody{packetType: PacketAUTH}
	n, err := decodeReasonBody(r, header, &body, &p.Props, PropCtxAUTH)
	p.ReasonCode = body.reasonCode
	return n, err
}

// Validate validates the packet contents. Only the bare success form may
// omit the authentication method.
func (p *AuthPacket) Validate() error {
	if !p.ReasonCode.ValidFor(PacketAUTH) {
		return ErrInvalidReasonCode
	}
	if err := p.Props.ValidateFor(PropCtxAUTH); err != nil {
		return err
	}
	if p.Props.Len() > 0 || p.ReasonCode != ReasonSuccess {
		if p.Method() == "" {
			return ErrAuthMethodRequired
		}
	}
	return nil
}
