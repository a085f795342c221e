//nolint:dupl // PUBACK, PUBREC, PUBREL and PUBCOMP share one wire layout
package mqttwire

import "io"

// PubcompPacket completes a QoS 2 exchange.
type PubcompPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

// Type returns the packet type.
func (p *PubcompPacket) Type() PacketType { return PacketPUBCOMP }

// Properties returns a pointer to the packet's properties.
func (p *PubcompPacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *PubcompPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PubcompPacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *PubcompPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return ackBody(PacketPUBCOMP, p.PacketID, p.ReasonCode, &p.Props).plan(maxPacketSize)
}

func (p *PubcompPacket) writeBody(w io.Writer, plan *encodePlan) error {
	return ackBody(PacketPUBCOMP, p.PacketID, p.ReasonCode, &p.Props).write(w, plan)
}

// Encode writes the packet to w.
func (p *PubcompPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *PubcompPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketPUBCOMP); err != nil {
		return 0, err
	}
	body := reasonBody{packetType: PacketPUBCOMP, hasID: true}
	n, err := decodeReasonBody(r, header, &body, &p.Props, PropCtxPUBCOMP)
	p.PacketID, p.ReasonCode = body.packetID, body.reasonCode
	return n, err
}

// Validate validates the packet contents.
func (p *PubcompPacket) Validate() error {
	return validateAck(PacketPUBCOMP, p.PacketID, p.ReasonCode, &p.Props, PropCtxPUBCOMP)
}
