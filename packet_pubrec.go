//nolint:dupl // PUBACK, PUBREC, PUBREL and PUBCOMP share one wire layout
package mqttwire

import "io"

// PubrecPacket is the first acknowledgement of a QoS 2 PUBLISH. It is answered with PUBREL.
type PubrecPacket struct {
	PacketID   uint16
	ReasonCode ReasonCode
	Props      Properties
}

// Type returns the packet type.
func (p *PubrecPacket) Type() PacketType { return PacketPUBREC }

// Properties returns a pointer to the packet's properties.
func (p *PubrecPacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *PubrecPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *PubrecPacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *PubrecPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return ackBody(PacketPUBREC, p.PacketID, p.ReasonCode, &p.Props).plan(maxPacketSize)
}

func (p *PubrecPacket) writeBody(w io.Writer, plan *encodePlan) error {
	return ackBody(PacketPUBREC, p.PacketID, p.ReasonCode, &p.Props).write(w, plan)
}

// Encode writes the packet to w.
func (p *PubrecPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *PubrecPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketPUBREC); err != nil {
		return 0, err
	}
	body := reasonBody{packetType: PacketPUBREC, hasID: true}
	n, err := decodeReasonBody(r, header, &body, &p.Props, PropCtxPUBREC)
	p.PacketID, p.ReasonCode = body.packetID, body.reasonCode
	return n, err
}

// Validate validates the packet contents.
func (p *PubrecPacket) Validate() error {
	return validateAck(PacketPUBREC, p.PacketID, p.ReasonCode, &p.Props, PropCtxPUBREC)
}
