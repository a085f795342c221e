package mqttwire

import (
	"errors"
	"io"
)

// ErrInvalidSubscriptionID is returned for a subscription identifier of zero.
var ErrInvalidSubscriptionID = errors.New("invalid subscription identifier")

// Subscription is a topic filter with its subscription options.
type Subscription struct {
	TopicFilter     string
	QoS             byte
	NoLocal         bool
	RetainAsPublish bool
	RetainHandling  byte
}

func (s Subscription) options() byte {
	options := s.QoS & 0x03
	if s.NoLocal {
		options |= 0x04
	}
	if s.RetainAsPublish {
		options |= 0x08
	}
	return options | (s.RetainHandling&0x03)<<4
}

// SubscribePacket requests one or more subscriptions.
type SubscribePacket struct {
	PacketID      uint16
	Props         Properties
	Subscriptions []Subscription
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType { return PacketSUBSCRIBE }

// Properties returns a pointer to the packet's properties.
func (p *SubscribePacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *SubscribePacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *SubscribePacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *SubscribePacket) plan(maxPacketSize uint32) (encodePlan, error) {
	payload := 0
	for _, sub := range p.Subscriptions {
		payload += stringSize(sub.TopicFilter) + 1
	}
	return planWithProperties(PacketSUBSCRIBE.requiredFlags(), 2, payload, &p.Props, maxPacketSize, false)
}

func (p *SubscribePacket) writeBody(w io.Writer, plan *encodePlan) error {
	if _, err := encodeUint16(w, p.PacketID); err != nil {
		return err
	}
	if _, err := writeProperties(w, plan.props, plan.size.propertyLength); err != nil {
		return err
	}
	for _, sub := range p.Subscriptions {
		if _, err := encodeString(w, sub.TopicFilter); err != nil {
			return err
		}
		if _, err := w.Write([]byte{sub.options()}); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes the packet to w.
func (p *SubscribePacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *SubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketSUBSCRIBE); err != nil {
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
	if err := p.Props.ValidateFor(PropCtxSUBSCRIBE); err != nil {
		return total, err
	}

	p.Subscriptions = nil
	for total < int(header.RemainingLength) {
		var sub Subscription
		sub.TopicFilter, n, err = decodeString(r)
		total += n
		if err != nil {
			return total, err
		}

		options, n, err := decodeByte(r)
		total += n
		if err != nil {
			return total, err
		}
		if options&0xC0 != 0 {
			return total, ErrProtocolViolation
		}
		sub.QoS = options & 0x03
		sub.NoLocal = options&0x04 != 0
		sub.RetainAsPublish = options&0x08 != 0
		sub.RetainHandling = (options >> 4) & 0x03

		p.Subscriptions = append(p.Subscriptions, sub)
	}
	return total, nil
}

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(p.Subscriptions) == 0 {
		return ErrProtocolViolation
	}
	for _, sub := range p.Subscriptions {
		if sub.TopicFilter == "" {
			return ErrProtocolViolation
		}
		if sub.QoS > 2 {
			return ErrInvalidQoS
		}
		if sub.RetainHandling > 2 {
			return ErrProtocolViolation
		}
	}
	if p.Props.Has(PropSubscriptionIdentifier) && p.Props.GetUint32(PropSubscriptionIdentifier) == 0 {
		return ErrInvalidSubscriptionID
	}
	return p.Props.ValidateFor(PropCtxSUBSCRIBE)
}
