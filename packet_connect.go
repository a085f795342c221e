package mqttwire

import (
	"errors"
	"io"
)

const (
	protocolName    = "MQTT"
	protocolVersion = 5
)

const (
	connectFlagCleanStart   = 0x02
	connectFlagWillFlag     = 0x04
	connectFlagWillRetain   = 0x20
	connectFlagPasswordFlag = 0x40
	connectFlagUsernameFlag = 0x80
)

// CONNECT packet errors.
var (
	ErrInvalidProtocolName    = errors.New("invalid protocol name")
	ErrInvalidProtocolVersion = errors.New("unsupported protocol version")
	ErrInvalidConnectFlags    = errors.New("invalid connect flags")
	ErrClientIDRequired       = errors.New("client ID required with clean start false")
)

// Will is the message the server publishes when the connection ends
// without a normal DISCONNECT.
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
	Props   Properties
}

// ConnectPacket is the first packet a client sends.
type ConnectPacket struct {
	ClientID   string
	CleanStart bool
	KeepAlive  uint16
	Props      Properties

	Username string
	Password []byte

	// Will is nil when no will message is set.
	Will *Will
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType { return PacketCONNECT }

// Properties returns a pointer to the packet's properties.
func (p *ConnectPacket) Properties() *Properties { return &p.Props }

// AuthMethod returns the authentication method property, if any.
func (p *ConnectPacket) AuthMethod() string { return p.Props.GetString(PropAuthenticationMethod) }

func (p *ConnectPacket) flags() byte {
	var flags byte
	if p.CleanStart {
		flags |= connectFlagCleanStart
	}
	if p.Will != nil {
		flags |= connectFlagWillFlag | (p.Will.QoS&0x03)<<3
		if p.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if len(p.Password) > 0 {
		flags |= connectFlagPasswordFlag
	}
	if p.Username != "" {
		flags |= connectFlagUsernameFlag
	}
	return flags
}

// variable header: protocol name, version, flags, keep alive
func (p *ConnectPacket) fixedLen() int {
	return stringSize(protocolName) + 1 + 1 + 2
}

func (p *ConnectPacket) payloadLen() (int, int, error) {
	n := stringSize(p.ClientID)
	willPropLen := -1
	if p.Will != nil {
		var err error
		willPropLen, err = propertyLength(&p.Will.Props)
		if err != nil {
			return 0, 0, err
		}
		n += varintLen(willPropLen) + willPropLen
		n += stringSize(p.Will.Topic) + binarySize(p.Will.Payload)
	}
	if p.Username != "" {
		n += stringSize(p.Username)
	}
	if len(p.Password) > 0 {
		n += binarySize(p.Password)
	}
	return n, willPropLen, nil
}

func (p *ConnectPacket) plan(maxPacketSize uint32) (encodePlan, error) {
	payload, _, err := p.payloadLen()
	if err != nil {
		return encodePlan{}, err
	}
	return planWithProperties(0, p.fixedLen(), payload, &p.Props, maxPacketSize, false)
}

func (p *ConnectPacket) writeBody(w io.Writer, plan *encodePlan) error {
	if _, err := encodeString(w, protocolName); err != nil {
		return err
	}
	if _, err := w.Write([]byte{protocolVersion, p.flags()}); err != nil {
		return err
	}
	if _, err := encodeUint16(w, p.KeepAlive); err != nil {
		return err
	}
	if _, err := writeProperties(w, plan.props, plan.size.propertyLength); err != nil {
		return err
	}

	if _, err := encodeString(w, p.ClientID); err != nil {
		return err
	}
	if p.Will != nil {
		if _, err := p.Will.Props.Encode(w); err != nil {
			return err
		}
		if _, err := encodeString(w, p.Will.Topic); err != nil {
			return err
		}
		if _, err := encodeBinary(w, p.Will.Payload); err != nil {
			return err
		}
	}
	if p.Username != "" {
		if _, err := encodeString(w, p.Username); err != nil {
			return err
		}
	}
	if len(p.Password) > 0 {
		if _, err := encodeBinary(w, p.Password); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes the packet to w.
func (p *ConnectPacket) Encode(w io.Writer) (int, error) { return encode(w, p) }

// Decode reads the packet body from r.
func (p *ConnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if err := checkHeader(header, PacketCONNECT); err != nil {
		return 0, err
	}

	var total int

	name, n, err := decodeString(r)
	total += n
	if err != nil {
		return total, err
	}
	if name != protocolName {
		return total, ErrInvalidProtocolName
	}

	version, n, err := decodeByte(r)
	total += n
	if err != nil {
		return total, err
	}
	if version != protocolVersion {
		return total, ErrInvalidProtocolVersion
	}

	flags, n, err := decodeByte(r)
	total += n
	if err != nil {
		return total, err
	}
	if err := checkConnectFlags(flags); err != nil {
		return total, err
	}
	p.CleanStart = flags&connectFlagCleanStart != 0

	p.KeepAlive, n, err = decodeUint16(r)
	total += n
	if err != nil {
		return total, err
	}

	n, err = p.Props.Decode(r)
	total += n
	if err != nil {
		return total, err
	}
	if err := p.Props.ValidateFor(PropCtxCONNECT); err != nil {
		return total, err
	}

	p.ClientID, n, err = decodeString(r)
	total += n
	if err != nil {
		return total, err
	}

	if flags&connectFlagWillFlag != 0 {
		will := &Will{
			QoS:    (flags >> 3) & 0x03,
			Retain: flags&connectFlagWillRetain != 0,
		}
		n, err = will.Props.Decode(r)
		total += n
		if err != nil {
			return total, err
		}
		if err := will.Props.ValidateFor(PropCtxWILL); err != nil {
			return total, err
		}
		will.Topic, n, err = decodeString(r)
		total += n
		if err != nil {
			return total, err
		}
		will.Payload, n, err = decodeBinary(r)
		total += n
		if err != nil {
			return total, err
		}
		p.Will = will
	}

	if flags&connectFlagUsernameFlag != 0 {
		p.Username, n, err = decodeString(r)
		total += n
		if err != nil {
			return total, err
		}
	}
	if flags&connectFlagPasswordFlag != 0 {
		p.Password, n, err = decodeBinary(r)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func checkConnectFlags(flags byte) error {
	if flags&0x01 != 0 {
		return ErrInvalidConnectFlags
	}
	qos := (flags >> 3) & 0x03
	if qos > 2 {
		return ErrInvalidConnectFlags
	}
	if flags&connectFlagWillFlag == 0 && (qos != 0 || flags&connectFlagWillRetain != 0) {
		return ErrInvalidConnectFlags
	}
	return nil
}

// Validate validates the packet contents.
func (p *ConnectPacket) Validate() error {
	if err := validString(p.ClientID); err != nil {
		return err
	}
	if !p.CleanStart && p.ClientID == "" {
		return ErrClientIDRequired
	}
	if p.Will != nil {
		if p.Will.QoS > 2 {
			return ErrInvalidConnectFlags
		}
		if err := validString(p.Will.Topic); err != nil {
			return err
		}
		if err := p.Will.Props.ValidateFor(PropCtxWILL); err != nil {
			return err
		}
	}
	if p.Props.Has(PropAuthenticationData) && !p.Props.Has(PropAuthenticationMethod) {
		return ErrAuthMethodRequired
	}
	return p.Props.ValidateFor(PropCtxCONNECT)
}
