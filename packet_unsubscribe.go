package mqttwire

import "io"

// UnsubscribePacket removes one or more subscriptions.
type UnsubscribePacket struct {
	PacketID     uint16
	Props        Properties
	TopicFilters []string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() PacketType { return PacketUNSUBSCRIBE }

// Properties returns a pointer to the packet's properties.
func (p *UnsubscribePacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *UnsubscribePacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *UnsubscribePacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *UnsubscribePacket) plan(maxPacketSize uint32) (encodePlan, error) {
	payload := 0
	for _, tf := range p.TopicFilters {
		payload += stringSize(tf)
	}
	return planWithProperties(PacketUNSUBSCRIBE.requiredFlags(), 2, payload, &p.Props, maxPacketSize, false)
}

func (p *UnsubscribePacket) writeBody(w io.Writer, plan *encodePlan) error {
	if _, err := encodeUint16(w, p.PacketID); err != nil {
		return err
	}
	if _, err := writeProperties(w, plan.props, plan.size.propertyLength); err != nil {
		return err
	}
	for _, tf := range p.TopicFilters {
		if _, err := encodeString(w, tf); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes the packet to w.
func (p *UnsubscribePacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *UnsubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketUNSUBSCRIBE); err != nil {
		return 0, err
	}

	var total int
	var n int
	var err error

	p.PacketID, n, err = decodeUint16(r)
	total += n
	if err != nil {
		return total, err
	}

	n, err = p.Props.Decode(r)
	total += n
	if err != nil {
		return total, err
	}
	if err := p.Props.ValidateFor(PropCtxUNSUBSCRIBE); err != nil {
		return total, err
	}

	p.TopicFilters = nil
	for total < int(header.RemainingLength) {
		tf, n, err := decodeString(r)
		total += n
		if err != nil {
			return total, err
		}
		p.TopicFilters = append(p.TopicFilters, tf)
	}
	return total, nil
}

// Validate validates the packet contents.
func (p *UnsubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(p.TopicFilters) == 0 {
		return ErrProtocolViolation
	}
	for _, tf := range p.TopicFilters {
		if tf == "" {
			return ErrProtocolViolation
		}
	}
	return p.Props.ValidateFor(PropCtxUNSUBSCRIBE)
}
