package mqttwire

import "io"

// PingreqPacket is the client's keep alive probe.
type PingreqPacket struct{}

// Type returns the packet type.
func (p *PingreqPacket) Type() PacketType { return PacketPINGREQ }

func (p *PingreqPacket) plan(uint32) (encodePlan, error) { return emptyPlan(), nil }

func (p *PingreqPacket) writeBody(io.Writer, *encodePlan) error { return nil }

// Encode writes the packet to w.
func (p *PingreqPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode checks the header; PINGREQ has no body.
func (p *PingreqPacket) Decode(_ io.Reader, header FixedHeader) (int, error) {
	return 0, decodeEmpty(header, PacketPINGREQ)
}

// Validate validates the packet contents.
func (p *PingreqPacket) Validate() error { return nil }

// PingrespPacket answers a PINGREQ.
type PingrespPacket struct{}

// Type returns the packet type.
func (p *PingrespPacket) Type() PacketType { return PacketPINGRESP }

func (p *PingrespPacket) plan(uint32) (encodePlan, error) { return emptyPlan(), nil }

func (p *PingrespPacket) writeBody(io.Writer, *encodePlan) error { return nil }

// Encode writes the packet to w.
func (p *PingrespPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode checks the header; PINGRESP has no body.
func (p *PingrespPacket) Decode(_ io.Reader, header FixedHeader) (int, error) {
	return 0, decodeEmpty(header, PacketPINGRESP)
}

// Validate validates the packet contents.
func (p *PingrespPacket) Validate() error { return nil }

func emptyPlan() encodePlan {
	return encodePlan{size: packetSize{propertyLength: -1}}
}

func decodeEmpty(header FixedHeader, t PacketType) error {
	if err := checkHeader(header, t); err != nil {
		return err
	}
	if header.RemainingLength != 0 {
		return ErrProtocolViolation
	}
	return nil
}
