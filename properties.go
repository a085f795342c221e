package mqttwire

import (
	"encoding/binary"
	"errors"
	"io"
)

// PropertyID is an MQTT 5 property identifier. On the wire it is a variable
// byte integer, although every identifier defined today fits in one byte.
type PropertyID uint32

// Property identifiers.
const (
	PropPayloadFormatIndicator   PropertyID = 0x01
	PropMessageExpiryInterval    PropertyID = 0x02
	PropContentType              PropertyID = 0x03
	PropResponseTopic            PropertyID = 0x08
	PropCorrelationData          PropertyID = 0x09
	PropSubscriptionIdentifier   PropertyID = 0x0B
	PropSessionExpiryInterval    PropertyID = 0x11
	PropAssignedClientIdentifier PropertyID = 0x12
	PropServerKeepAlive          PropertyID = 0x13
	PropAuthenticationMethod     PropertyID = 0x15
	PropAuthenticationData       PropertyID = 0x16
	PropRequestProblemInfo       PropertyID = 0x17
	PropWillDelayInterval        PropertyID = 0x18
	PropRequestResponseInfo      PropertyID = 0x19
	PropResponseInformation      PropertyID = 0x1A
	PropServerReference          PropertyID = 0x1C
	PropReasonString             PropertyID = 0x1F
	PropReceiveMaximum           PropertyID = 0x21
	PropTopicAliasMaximum        PropertyID = 0x22
	PropTopicAlias               PropertyID = 0x23
	PropMaximumQoS               PropertyID = 0x24
	PropRetainAvailable          PropertyID = 0x25
	PropUserProperty             PropertyID = 0x26
	PropMaximumPacketSize        PropertyID = 0x27
	PropWildcardSubAvailable     PropertyID = 0x28
	PropSubscriptionIDAvailable  PropertyID = 0x29
	PropSharedSubAvailable       PropertyID = 0x2A
)

// PropertyType is the wire type of a property value.
type PropertyType byte

const (
	PropTypeByte        PropertyType = iota + 1 // byte
	PropTypeTwoByteInt                          // uint16
	PropTypeFourByteInt                         // uint32
	PropTypeVarInt                              // uint32, variable byte integer
	PropTypeString                              // string
	PropTypeBinary                              // []byte
	PropTypeStringPair                          // StringPair
)

type propertySpec struct {
	name       string
	typ        PropertyType
	repeatable bool
}

var propertySpecs = map[PropertyID]propertySpec{
	PropPayloadFormatIndicator:   {"Payload Format Indicator", PropTypeByte, false},
	PropMessageExpiryInterval:    {"Message Expiry Interval", PropTypeFourByteInt, false},
	PropContentType:              {"Content Type", PropTypeString, false},
	PropResponseTopic:            {"Response Topic", PropTypeString, false},
	PropCorrelationData:          {"Correlation Data", PropTypeBinary, false},
	PropSubscriptionIdentifier:   {"Subscription Identifier", PropTypeVarInt, true},
	PropSessionExpiryInterval:    {"Session Expiry Interval", PropTypeFourByteInt, false},
	PropAssignedClientIdentifier: {"Assigned Client Identifier", PropTypeString, false},
	PropServerKeepAlive:          {"Server Keep Alive", PropTypeTwoByteInt, false},
	PropAuthenticationMethod:     {"Authentication Method", PropTypeString, false},
	PropAuthenticationData:       {"Authentication Data", PropTypeBinary, false},
	PropRequestProblemInfo:       {"Request Problem Information", PropTypeByte, false},
	PropWillDelayInterval:        {"Will Delay Interval", PropTypeFourByteInt, false},
	PropRequestResponseInfo:      {"Request Response Information", PropTypeByte, false},
	PropResponseInformation:      {"Response Information", PropTypeString, false},
	PropServerReference:          {"Server Reference", PropTypeString, false},
	PropReasonString:             {"Reason String", PropTypeString, false},
	PropReceiveMaximum:           {"Receive Maximum", PropTypeTwoByteInt, false},
	PropTopicAliasMaximum:        {"Topic Alias Maximum", PropTypeTwoByteInt, false},
	PropTopicAlias:               {"Topic Alias", PropTypeTwoByteInt, false},
	PropMaximumQoS:               {"Maximum QoS", PropTypeByte, false},
	PropRetainAvailable:          {"Retain Available", PropTypeByte, false},
	PropUserProperty:             {"User Property", PropTypeStringPair, true},
	PropMaximumPacketSize:        {"Maximum Packet Size", PropTypeFourByteInt, false},
	PropWildcardSubAvailable:     {"Wildcard Subscription Available", PropTypeByte, false},
	PropSubscriptionIDAvailable:  {"Subscription Identifier Available", PropTypeByte, false},
	PropSharedSubAvailable:       {"Shared Subscription Available", PropTypeByte, false},
}

// String returns the property name.
func (p PropertyID) String() string {
	if s, ok := propertySpecs[p]; ok {
		return s.name
	}
	return "Unknown property"
}

// Type returns the wire type of the property, or 0 for unknown identifiers.
func (p PropertyID) Type() PropertyType {
	return propertySpecs[p].typ
}

// Repeatable reports whether the property may appear more than once in a packet.
func (p PropertyID) Repeatable() bool {
	return propertySpecs[p].repeatable
}

// Property errors.
var (
	ErrUnknownPropertyID     = errors.New("unknown property identifier")
	ErrInvalidPropertyType   = errors.New("invalid property type for identifier")
	ErrDuplicateProperty     = errors.New("duplicate property not allowed")
	ErrMalformedProperties   = errors.New("property length does not match property content")
	ErrPropertyNotAllowed    = errors.New("property not allowed for packet type")
	ErrInvalidPropertyLength = errors.New("invalid property length")
)

// Properties is an ordered list of MQTT 5 properties. Insertion order is kept
// and is the order used on the wire.
type Properties struct {
	props []property
}

type property struct {
	id    PropertyID
	value any
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.props)
}

// Has reports whether a property with the given ID exists.
func (p *Properties) Has(id PropertyID) bool {
	if p == nil {
		return false
	}
	for i := range p.props {
		if p.props[i].id == id {
			return true
		}
	}
	return false
}

// Get returns the first value for id, or nil.
func (p *Properties) Get(id PropertyID) any {
	if p == nil {
		return nil
	}
	for i := range p.props {
		if p.props[i].id == id {
			return p.props[i].value
		}
	}
	return nil
}

// GetAll returns every value for id in wire order.
func (p *Properties) GetAll(id PropertyID) []any {
	if p == nil {
		return nil
	}
	var result []any
	for i := range p.props {
		if p.props[i].id == id {
			result = append(result, p.props[i].value)
		}
	}
	return result
}

// Set replaces the value of a non-repeatable property in place, or appends it.
func (p *Properties) Set(id PropertyID, value any) {
	for i := range p.props {
		if p.props[i].id == id {
			p.props[i].value = value
			return
		}
	}
	p.props = append(p.props, property{id: id, value: value})
}

// Add appends a property. Use it for repeatable properties.
func (p *Properties) Add(id PropertyID, value any) {
	p.props = append(p.props, property{id: id, value: value})
}

// AddUserProperty appends a user property.
func (p *Properties) AddUserProperty(key, value string) {
	p.Add(PropUserProperty, StringPair{Key: key, Value: value})
}

// Delete removes all properties with the given ID.
func (p *Properties) Delete(id PropertyID) {
	if p == nil {
		return
	}
	n := 0
	for i := range p.props {
		if p.props[i].id != id {
			p.props[n] = p.props[i]
			n++
		}
	}
	clear(p.props[n:])
	p.props = p.props[:n]
}

// Without returns a copy of p that lacks the given property.
func (p *Properties) Without(id PropertyID) Properties {
	var out Properties
	if p == nil {
		return out
	}
	out.props = make([]property, 0, len(p.props))
	for i := range p.props {
		if p.props[i].id != id {
			out.props = append(out.props, p.props[i])
		}
	}
	return out
}

// Each calls fn for every property in wire order.
func (p *Properties) Each(fn func(id PropertyID, value any)) {
	if p == nil {
		return
	}
	for i := range p.props {
		fn(p.props[i].id, p.props[i].value)
	}
}

// GetByte returns the byte value of a property, or 0.
func (p *Properties) GetByte(id PropertyID) byte {
	b, _ := p.Get(id).(byte)
	return b
}

// GetUint16 returns the uint16 value of a property, or 0.
func (p *Properties) GetUint16(id PropertyID) uint16 {
	u, _ := p.Get(id).(uint16)
	return u
}

// GetUint32 returns the uint32 value of a property, or 0.
func (p *Properties) GetUint32(id PropertyID) uint32 {
	u, _ := p.Get(id).(uint32)
	return u
}

// GetString returns the string value of a property, or "".
func (p *Properties) GetString(id PropertyID) string {
	s, _ := p.Get(id).(string)
	return s
}

// GetBinary returns the binary value of a property, or nil.
func (p *Properties) GetBinary(id PropertyID) []byte {
	b, _ := p.Get(id).([]byte)
	return b
}

// UserProperties returns all user properties in wire order.
func (p *Properties) UserProperties() []StringPair {
	all := p.GetAll(PropUserProperty)
	if all == nil {
		return nil
	}
	result := make([]StringPair, 0, len(all))
	for _, v := range all {
		if sp, ok := v.(StringPair); ok {
			result = append(result, sp)
		}
	}
	return result
}

// GetAllVarInts returns all variable byte integer values for id.
func (p *Properties) GetAllVarInts(id PropertyID) []uint32 {
	all := p.GetAll(id)
	if all == nil {
		return nil
	}
	result := make([]uint32, 0, len(all))
	for _, v := range all {
		if u, ok := v.(uint32); ok {
			result = append(result, u)
		}
	}
	return result
}

// Encode writes the property length followed by every property.
func (p *Properties) Encode(w io.Writer) (int, error) {
	length, err := propertyLength(p)
	if err != nil {
		return 0, err
	}
	return writeProperties(w, p, length)
}

// writeProperties writes a property block whose content length was already
// computed by the size calculator.
func writeProperties(w io.Writer, p *Properties, length int) (int, error) {
	n, err := encodeVarint(w, uint32(length))
	if err != nil {
		return n, err
	}

	for i := range p.Len() {
		n2, err := encodeProperty(w, &p.props[i])
		n += n2
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func encodeProperty(w io.Writer, prop *property) (int, error) {
	n, err := encodeVarint(w, uint32(prop.id))
	if err != nil {
		return n, err
	}

	var n2 int
	switch prop.id.Type() {
	case PropTypeByte:
		b, ok := prop.value.(byte)
		if !ok {
			return n, ErrInvalidPropertyType
		}
		n2, err = w.Write([]byte{b})

	case PropTypeTwoByteInt:
		v, ok := prop.value.(uint16)
		if !ok {
			return n, ErrInvalidPropertyType
		}
		n2, err = encodeUint16(w, v)

	case PropTypeFourByteInt:
		v, ok := prop.value.(uint32)
		if !ok {
			return n, ErrInvalidPropertyType
		}
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], v)
		n2, err = w.Write(buf[:])

	case PropTypeVarInt:
		v, ok := prop.value.(uint32)
		if !ok {
			return n, ErrInvalidPropertyType
		}
		n2, err = encodeVarint(w, v)

	case PropTypeString:
		s, ok := prop.value.(string)
		if !ok {
			return n, ErrInvalidPropertyType
		}
		n2, err = encodeString(w, s)

	case PropTypeBinary:
		b, ok := prop.value.([]byte)
		if !ok {
			return n, ErrInvalidPropertyType
		}
		n2, err = encodeBinary(w, b)

	case PropTypeStringPair:
		sp, ok := prop.value.(StringPair)
		if !ok {
			return n, ErrInvalidPropertyType
		}
		n2, err = encodeStringPair(w, sp)

	default:
		return n, ErrUnknownPropertyID
	}

	return n + n2, err
}

// propertySize returns the encoded size of one property including its identifier.
func propertySize(prop *property) int {
	size := varintSize(uint32(prop.id))

	switch prop.id.Type() {
	case PropTypeByte:
		size++
	case PropTypeTwoByteInt:
		size += 2
	case PropTypeFourByteInt:
		size += 4
	case PropTypeVarInt:
		v, _ := prop.value.(uint32)
		size += varintSize(v)
	case PropTypeString:
		s, _ := prop.value.(string)
		size += stringSize(s)
	case PropTypeBinary:
		b, _ := prop.value.([]byte)
		size += binarySize(b)
	case PropTypeStringPair:
		sp, _ := prop.value.(StringPair)
		size += stringSize(sp.Key) + stringSize(sp.Value)
	}
	return size
}

// Decode reads a property block (length and content) from r.
func (p *Properties) Decode(r io.Reader) (int, error) {
	length, n, err := decodeVarint(r)
	if err != nil {
		return n, err
	}

	remaining := int(length)
	for remaining > 0 {
		prop, n2, err := decodeProperty(r)
		n += n2
		remaining -= n2
		if err != nil {
			return n, err
		}
		if remaining < 0 {
			return n, ErrMalformedProperties
		}
		p.props = append(p.props, prop)
	}

	return n, nil
}

func decodeProperty(r io.Reader) (property, int, error) {
	rawID, n, err := decodeVarint(r)
	if err == io.EOF {
		return property{}, n, ErrInsufficientData
	}
	if err != nil {
		return property{}, n, err
	}

	id := PropertyID(rawID)
	spec, ok := propertySpecs[id]
	if !ok {
		return property{}, n, ErrUnknownPropertyID
	}

	var value any
	var n2 int

	switch spec.typ {
	case PropTypeByte:
		value, n2, err = decodeByte(r)

	case PropTypeTwoByteInt:
		value, n2, err = decodeUint16(r)

	case PropTypeFourByteInt:
		var buf [4]byte
		n2, err = readFull(r, buf[:])
		value = binary.BigEndian.Uint32(buf[:])

	case PropTypeVarInt:
		value, n2, err = decodeVarint(r)

	case PropTypeString:
		value, n2, err = decodeString(r)

	case PropTypeBinary:
		value, n2, err = decodeBinary(r)

	case PropTypeStringPair:
		value, n2, err = decodeStringPair(r)
	}

	return property{id: id, value: value}, n + n2, err
}
