package mqttwire

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrEncoderBusy is returned when an Encoder is entered while it is still
// encoding another packet.
var ErrEncoderBusy = errors.New("encoder is already in use")

// encodePlan is what the size calculation decided for one packet: its flags,
// its sizes and the property set that will actually be written.
type encodePlan struct {
	flags byte
	size  packetSize
	props *Properties
}

// encodable is implemented by every packet type in this package.
type encodable interface {
	Packet
	plan(maxPacketSize uint32) (encodePlan, error)
	writeBody(w io.Writer, plan *encodePlan) error
}

// encodePacket frames a packet: fixed header, remaining length, then the
// body written by the packet itself.
func encodePacket(w io.Writer, p encodable, maxPacketSize uint32) (int, error) {
	plan, err := p.plan(maxPacketSize)
	if err != nil {
		return 0, err
	}

	header := FixedHeader{
		PacketType:      p.Type(),
		Flags:           plan.flags,
		RemainingLength: uint32(plan.size.remainingLength),
	}
	n, err := header.Encode(w)
	if err != nil {
		return n, err
	}

	cw := countingWriter{w: w}
	err = p.writeBody(&cw, &plan)
	return n + cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// omitReasonCode is the omission rule: a packet whose reason code is its
// type's default and which has no properties carries neither.
func omitReasonCode(code, def ReasonCode, props *Properties) bool {
	return code == def && props.Len() == 0
}

// reasonBody is the variable header shared by PUBACK, PUBREC, PUBREL,
// PUBCOMP, DISCONNECT and AUTH: an optional packet identifier followed by a
// reason code and a property block, both subject to the omission rule.
type reasonBody struct {
	packetType PacketType
	hasID      bool
	packetID   uint16
	reasonCode ReasonCode
	props      *Properties
	downgrade  bool
}

func (b *reasonBody) fixedLen() int {
	if b.hasID {
		return 2
	}
	return 0
}

func (b *reasonBody) measure(props *Properties) (packetSize, error) {
	if omitReasonCode(b.reasonCode, DefaultReasonCode(b.packetType), props) {
		return remainingLength(b.fixedLen(), -1, 0)
	}
	if props.Len() == 0 {
		return remainingLength(b.fixedLen()+1, -1, 0)
	}

	propLen, err := propertyLength(props)
	if err != nil {
		return packetSize{}, err
	}
	return remainingLength(b.fixedLen()+1, propLen, 0)
}

func (b *reasonBody) plan(maxPacketSize uint32) (encodePlan, error) {
	size, props, err := fitPacketSize(b.props, maxPacketSize, b.downgrade, b.measure)
	if err != nil {
		return encodePlan{}, err
	}
	return encodePlan{flags: b.packetType.requiredFlags(), size: size, props: props}, nil
}

func (b *reasonBody) write(w io.Writer, plan *encodePlan) error {
	if b.hasID {
		if _, err := encodeUint16(w, b.packetID); err != nil {
			return err
		}
	}
	if plan.size.remainingLength == b.fixedLen() {
		return nil
	}
	if _, err := w.Write([]byte{byte(b.reasonCode)}); err != nil {
		return err
	}
	if plan.size.propertyLength < 0 {
		return nil
	}
	_, err := writeProperties(w, plan.props, plan.size.propertyLength)
	return err
}

// decodeReasonBody reads the body written by reasonBody.write.
func decodeReasonBody(r io.Reader, header FixedHeader, b *reasonBody, props *Properties, ctx PropertyContext) (int, error) {
	var n int
	remaining := int(header.RemainingLength)

	if b.hasID {
		id, n2, err := decodeUint16(r)
		n += n2
		if err != nil {
			return n, err
		}
		b.packetID = id
	}

	b.reasonCode = DefaultReasonCode(b.packetType)
	if remaining <= n {
		return n, nil
	}

	code, n2, err := decodeByte(r)
	n += n2
	if err != nil {
		return n, err
	}
	b.reasonCode = ReasonCode(code)

	if remaining <= n {
		return n, nil
	}

	n2, err = props.Decode(r)
	n += n2
	if err != nil {
		return n, err
	}
	return n, props.ValidateFor(ctx)
}

// planWithProperties sizes packets whose property block is always present.
func planWithProperties(flags byte, fixed, payload int, props *Properties, maxPacketSize uint32, downgrade bool) (encodePlan, error) {
	size, props, err := fitPacketSize(props, maxPacketSize, downgrade, func(props *Properties) (packetSize, error) {
		propLen, err := propertyLength(props)
		if err != nil {
			return packetSize{}, err
		}
		return remainingLength(fixed, propLen, payload)
	})
	if err != nil {
		return encodePlan{}, err
	}
	return encodePlan{flags: flags, size: size, props: props}, nil
}

// AppendPacket encodes p and appends the bytes to dst. It holds no state
// between calls. maxPacketSize of zero means no negotiated limit.
func AppendPacket(dst []byte, p Packet, maxPacketSize uint32) ([]byte, error) {
	e, ok := p.(encodable)
	if !ok {
		return dst, ErrUnknownPacketType
	}
	if err := p.Validate(); err != nil {
		return dst, err
	}

	buf := bytesBuffer{data: dst}
	if _, err := encodePacket(&buf, e, maxPacketSize); err != nil {
		return dst, err
	}
	return buf.data, nil
}

// EncoderProvider hands out reusable encoders for one packet type. Encoders
// are checked out with Get and must be returned with Put.
type EncoderProvider struct {
	packetType PacketType
	next       *EncoderProvider
	pool       sync.Pool
}

// NewEncoderProvider creates a provider for packets of type t. next is the
// provider of the packet that naturally follows t in an exchange, or nil.
func NewEncoderProvider(t PacketType, next *EncoderProvider) *EncoderProvider {
	p := &EncoderProvider{packetType: t, next: next}
	p.pool.New = func() any {
		return &Encoder{provider: p}
	}
	return p
}

// Type returns the packet type this provider encodes.
func (p *EncoderProvider) Type() PacketType { return p.packetType }

// Next returns the provider of the follow-up packet, e.g. PUBREL for PUBREC.
func (p *EncoderProvider) Next() *EncoderProvider { return p.next }

// Get checks out an encoder.
func (p *EncoderProvider) Get() *Encoder {
	return p.pool.Get().(*Encoder)
}

// Put returns an encoder. It must not be used afterwards.
func (p *EncoderProvider) Put(e *Encoder) {
	if e == nil || e.provider != p {
		return
	}
	if cap(e.buf.data) > maxPooledBuffer {
		e.buf.data = nil
	}
	e.buf.data = e.buf.data[:0]
	p.pool.Put(e)
}

// Encoder encodes packets of a single type into a scratch buffer it owns.
// It is not safe for concurrent use and is not reentrant.
type Encoder struct {
	provider *EncoderProvider
	buf      bytesBuffer
	busy     atomic.Bool
}

// Encode encodes p and returns the encoded bytes. The slice is only valid
// until the next call to Encode or until the encoder is returned.
func (e *Encoder) Encode(p Packet, maxPacketSize uint32) ([]byte, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrEncoderBusy
	}
	defer e.busy.Store(false)

	if p.Type() != e.provider.packetType {
		return nil, ErrInvalidPacketType
	}

	out, err := AppendPacket(e.buf.data[:0], p, maxPacketSize)
	if err != nil {
		return nil, err
	}
	e.buf.data = out
	return out, nil
}

// Encoders is the set of encoder providers, one per packet type.
type Encoders struct {
	providers [PacketAUTH + 1]*EncoderProvider
}

// NewEncoders creates providers for every packet type. The PUBREC provider is
// linked to the PUBREL provider.
func NewEncoders() *Encoders {
	e := &Encoders{}
	for t := PacketCONNECT; t <= PacketAUTH; t++ {
		if t == PacketPUBREC {
			continue
		}
		e.providers[t] = NewEncoderProvider(t, nil)
	}
	e.providers[PacketPUBREC] = NewEncoderProvider(PacketPUBREC, e.providers[PacketPUBREL])
	return e
}

// Provider returns the provider for t, or nil for an invalid type.
func (e *Encoders) Provider(t PacketType) *EncoderProvider {
	if !t.Valid() {
		return nil
	}
	return e.providers[t]
}

// WritePacket encodes p with a pooled encoder and writes it to w.
func (e *Encoders) WritePacket(w io.Writer, p Packet, maxPacketSize uint32) (int, error) {
	provider := e.Provider(p.Type())
	if provider == nil {
		return 0, ErrUnknownPacketType
	}

	enc := provider.Get()
	defer provider.Put(enc)

	data, err := enc.Encode(p, maxPacketSize)
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}
