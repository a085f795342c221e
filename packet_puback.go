//nolint:dupl // PUBACK, PUBREC, PUBREL and PUBCOMP share one wire layout
package mqttwire

import "io"

// PubackPacket acknowledges a QoS 1 PUBLISH.
type PubackPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

// Type returns the packet type.
func (p *PubackPacket) Type() PacketType { return PacketPUBACK }

// Properties returns a pointer to the packet's properties.
func (p *PubackPacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *PubackPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PubackPacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *PubackPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return ackBody(PacketPUBACK, p.PacketID, p.ReasonCode, &p.Props).plan(maxPacketSize)
}

func (p *PubackPacket) writeBody(w io.Writer, plan *encodePlan) error {
	return ackBody(PacketPUBACK, p.PacketID, p.ReasonCode, &p.Props).write(w, plan)
}

// Encode writes the packet to w.
func (p *PubackPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *PubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketPUBACK); err != nil {
		return 0, err
	}
	body := reasonBody{packetType: PacketPUBACK, hasID: true}
	n, err := decodeReasonBody(r, header, &body, &p.Props, PropCtxPUBACK)
	p.PacketID, p.ReasonCode = body.packetID, body.reasonCode
	return n, err
}

// Validate validates the packet contents.
func (p *PubackPacket) Validate() error {
	return validateAck(PacketPUBACK, p.PacketID, p.ReasonCode, &p.Props, PropCtxPUBACK)
}
