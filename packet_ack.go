package mqttwire

// validateAck checks the fields shared by PUBACK, PUBREC, PUBREL and PUBCOMP.
func validateAck(t PacketType, id uint16, code ReasonCode, props *Properties, ctx PropertyContext) error {
	if id == 0 {
		return ErrInvalidPacketID
	}
	if !code.ValidFor(t) {
		return ErrInvalidReasonCode
	}
	return props.ValidateFor(ctx)
}

// ackBody builds the reasonBody of an identified acknowledgement. Encoders
// may drop its reason string and user properties to honour a maximum packet size.
func ackBody(t PacketType, id uint16, code ReasonCode, props *Properties) *reasonBody {
	return &reasonBody{
		packetType: t,
		hasID:      true,
		packetID:   id,
		reasonCode: code,
		props:      props,
		downgrade:  true,
	}
}
