package mqttwire

import "io"

// UnsubackPacket acknowledges an UNSUBSCRIBE with one reason code per topic
// filter.
type UnsubackPacket struct {
	PacketID    uint16
	Props       Properties
	ReasonCodes []ReasonCode
}

// Type returns the packet type.
func (p *UnsubackPacket) Type() PacketType { return PacketUNSUBACK }

// Properties returns a pointer to the packet's properties.
func (p *UnsubackPacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *UnsubackPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *UnsubackPacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *UnsubackPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return planWithProperties(0, 2, len(p.ReasonCodes), &p.Props, maxPacketSize, true)
}

func (p *UnsubackPacket) writeBody(w io.Writer, plan *encodePlan) error {
	return writeReasonList(w, p.PacketID, plan, p.ReasonCodes)
}

// Encode writes the packet to w.
func (p *UnsubackPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *UnsubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketUNSUBACK); err != nil {
		return 0, err
	}
	return decodeReasonList(r, header, &p.PacketID, &p.Props, PropCtxUNSUBACK, &p.ReasonCodes)
}

// Validate validates the packet contents.
func (p *UnsubackPacket) Validate() error {
	return validateReasonList(PacketUNSUBACK, p.PacketID, p.ReasonCodes, &p.Props, PropCtxUNSUBACK)
}
