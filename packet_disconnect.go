package mqttwire

import "io"

// DisconnectPacket is sent by either side before closing the connection.
type DisconnectPacket struct {
	ReasonCode ReasonCode
	Props      Properties
}

// Type returns the packet type.
func (p *DisconnectPacket) Type() PacketType { return PacketDISCONNECT }

// Properties returns a pointer to the packet's properties.
func (p *DisconnectPacket) Properties() *Properties { return &p.Props }

// ReasonString returns the reason string property, if any.
func (p *DisconnectPacket) ReasonString() string { return p.Props.GetString(PropReasonString) }

func (p *DisconnectPacket) body() *reasonBody {
	return &reasonBody{
		packetType: PacketDISCONNECT,
		reasonCode: p.ReasonCode,
		props:      &p.Props,
		downgrade:  true,
	}
}

func (p *DisconnectPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return p.body().plan(maxPacketSize)
}

func (p *DisconnectPacket) writeBody(w io.Writer, plan *encodePlan) error {
	return p.body().write(w, plan)
}

// Encode writes the packet to w.
func (p *DisconnectPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *DisconnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketDISCONNECT); err != nil {
		return 0, err
	}
	body := reasonBody{packetType: PacketDISCONNECT}
	n, err := decodeReasonBody(r, header, &body, &p.Props, PropCtxDISCONNECT)
	p.ReasonCode = body.reasonCode
	return n, err
}

// Validate validates the packet contents.
func (p *DisconnectPacket) Validate() error {
	if !p.ReasonCode.ValidFor(PacketDISCONNECT) {
		return ErrInvalidReasonCode
	}
	return p.Props.ValidateFor(PropCtxDISCONNECT)
}
