//nolint:dupl // PUBACK, PUBREC, PUBREL and PUBCOMP share one wire layout
package mqttwire

import "io"

// PubrelPacket releases a QoS 2 message after PUBREC.
type PubrelPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

// Type returns the packet type.
func (p *PubrelPacket) Type() PacketType { return PacketPUBREL }

// Properties returns a pointer to the packet's properties.
func (p *PubrelPacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *PubrelPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PubrelPacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *PubrelPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return ackBody(PacketPUBREL, p.PacketID, p.ReasonCode, &p.Props).plan(maxPacketSize)
}

func (p *PubrelPacket) writeBody(w io.Writer, plan *encodePlan) error {
	return ackBody(PacketPUBREL, p.PacketID, p.ReasonCode, &p.Props).write(w, plan)
}

// Encode writes the packet to w.
func (p *PubrelPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *PubrelPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketPUBREL); err != nil {
		return 0, err
	}
	body := reasonBody{packetType: PacketPUBREL, hasID: true}
	n, err := decodeReasonBody(r, header, &body, &p.Props, PropCtxPUBREL)
	p.PacketID, p.ReasonCode = body.packetID, body.reasonCode
	return n, err
}

// Validate validates the packet contents.
func (p *PubrelPacket) Validate() error {
	return validateAck(PacketPUBREL, p.PacketID, p.ReasonCode, &p.Props, PropCtxPUBREL)
}
