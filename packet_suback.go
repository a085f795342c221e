package mqttwire

import "io"

// SubackPacket acknowledges a SUBSCRIBE with one reason code per
// subscription.
type SubackPacket struct {
	PacketID    uint16
	Props       Properties
	ReasonCodes []ReasonCode
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType { return PacketSUBACK }

// Properties returns a pointer to the packet's properties.
func (p *SubackPacket) Properties() *Properties { return &p.Props }

// GetPacketID returns the packet identifier.
func (p *SubackPacket) GetPacketID() uint16 { return p.PacketID }

// SetPacketID sets the packet identifier.
func (p *SubackPacket) SetPacketID(id uint16) { p.PacketID = id }

func (p *SubackPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	return planWithProperties(0, 2, len(p.ReasonCodes), &p.Props, maxPacketSize, true)
}

func (p *SubackPacket) writeBody(w io.Writer, plan *encodePlan) error {
	return writeReasonList(w, p.PacketID, plan, p.ReasonCodes)
}

// Encode writes the packet to w.
func (p *SubackPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *SubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketSUBACK); err != nil {
		return 0, err
	}
	return decodeReasonList(r, header, &p.PacketID, &p.Props, PropCtxSUBACK, &p.ReasonCodes)
}

// Validate validates the packet contents.
func (p *SubackPacket) Validate() error {
	return validateReasonList(PacketSUBACK, p.PacketID, p.ReasonCodes, &p.Props, PropCtxSUBACK)
}

// writeReasonList writes the body shared by SUBACK and UNSUBACK: packet
// identifier, property block, then one reason code per topic filter.
func writeReasonList(w io.Writer, id uint16, plan *encodePlan, codes []ReasonCode) error {
	if _, err := encodeUint16(w, id); err != nil {
		return err
	}
	if _, err := writeProperties(w, plan.props, plan.size.propertyLength); err != nil {
		return err
	}
	buf := make([]byte, len(codes))
	for i, code := range codes {
		buf[i] = byte(code)
	}
	_, err := w.Write(buf)
	return err
}

func decodeReasonList(r io.Reader, header FixedHeader, id *uint16, props *Properties, ctx PropertyContext, codes *[]ReasonCode) (int, error) {
	var total int

	v, n, err := decodeUint16(r)
	total += n
	if err != nil {
		return total, err
	}
	*id = v

	n, err = props.Decode(r)
	total += n
	if err != nil {
		return total, err
	}
	if err := props.ValidateFor(ctx); err != nil {
		return total, err
	}

	count := int(header.RemainingLength) - total
	if count < 0 {
		return total, ErrMalformedPacket
	}
	buf := make([]byte, count)
	n, err = readFull(r, buf)
	total += n
	if err != nil {
		return total, err
	}

	*codes = make([]ReasonCode, count)
	for i, b := range buf {
		(*codes)[i] = ReasonCode(b)
	}
	return total, nil
}

func validateReasonList(t PacketType, id uint16, codes []ReasonCode, props *Properties, ctx PropertyContext) error {
	if id == 0 {
		return ErrInvalidPacketID
	}
	if len(codes) == 0 {
		return ErrProtocolViolation
	}
	for _, code := range codes {
		if !code.ValidFor(t) {
			return ErrInvalidReasonCode
		}
	}
	return props.ValidateFor(ctx)
}
