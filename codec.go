package mqttwire

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrPacketTooLarge    = errors.New("mqttwire: packet exceeds maximum size")
	ErrUnknownPacketType = errors.New("mqttwire: unknown packet type")
	ErrMalformedPacket   = errors.New("mqttwire: malformed packet")
)

func newPacket(t PacketType) (Packet, error) {
	switch t {
	case PacketCONNECT:
		return &ConnectPacket{}, nil
	case PacketCONNACK:
		return &ConnackPacket{}, nil
	case PacketPUBLISH:
		return &PublishPacket{}, nil
	case PacketPUBACK:
		return &PubackPacket{}, nil
	case PacketPUBREC:
		return &PubrecPacket{}, nil
	case PacketPUBREL:
		return &PubrelPacket{}, nil
	case PacketPUBCOMP:
		return &PubcompPacket{}, nil
	case PacketSUBSCRIBE:
		return &SubscribePacket{}, nil
	case PacketSUBACK:
		return &SubackPacket{}, nil
	case PacketUNSUBSCRIBE:
		return &UnsubscribePacket{}, nil
	case PacketUNSUBACK:
		return &UnsubackPacket{}, nil
	case PacketPINGREQ:
		return &PingreqPacket{}, nil
	case PacketPINGRESP:
		return &PingrespPacket{}, nil
	case PacketDISCONNECT:
		return &DisconnectPacket{}, nil
	case PacketAUTH:
		return &AuthPacket{}, nil
	default:
		return nil, ErrUnknownPacketType
	}
}

// ReadPacket reads one complete packet from r. When maxSize is greater than
// zero, packets whose total size exceeds it fail with ErrPacketTooLarge
// before their body is read.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, int, error) {
	var header FixedHeader
	n, err := header.Decode(r)
	if err != nil {
		return nil, n, err
	}

	if maxSize > 0 && uint64(header.Size())+uint64(header.RemainingLength) > uint64(maxSize) {
		return nil, n, ErrPacketTooLarge
	}

	remaining := make([]byte, header.RemainingLength)
	if header.RemainingLength > 0 {
		rn, err := io.ReadFull(r, remaining)
		n += rn
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, n, err
		}
	}

	packet, err := newPacket(header.PacketType)
	if err != nil {
		return nil, n, err
	}

	reader := getBytesReader(remaining)
	defer putBytesReader(reader)

	if _, err := packet.Decode(reader, header); err != nil {
		return nil, n, fmt.Errorf("%w: %s: %w", ErrMalformedPacket, header.PacketType, err)
	}
	if reader.Len() != 0 {
		return nil, n, fmt.Errorf("%w: %s: %d trailing bytes", ErrMalformedPacket, header.PacketType, reader.Len())
	}

	return packet, n, nil
}

// WritePacket validates, encodes and writes one packet. maxSize of zero
// means no negotiated maximum packet size.
func WritePacket(w io.Writer, packet Packet, maxSize uint32) (int, error) {
	buf := getBytesBuffer()
	defer putBytesBuffer(buf)

	data, err := AppendPacket(buf.data, packet, maxSize)
	if err != nil {
		return 0, err
	}
	buf.data = data

	return w.Write(data)
}

// bytesReader reads from a byte slice.
type bytesReader struct {
	data []byte
	pos  int
}

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// Len returns the number of unread bytes.
func (r *bytesReader) Len() int {
	return len(r.data) - r.pos
}

// bytesBuffer is an append-only writer.
type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bytesBuffer) Bytes() []byte {
	return b.data
}

// maxPooledBuffer caps the capacity of buffers returned to bufferPool.
const maxPooledBuffer = 64 * 1024

var (
	readerPool = sync.Pool{New: func() any { return new(bytesReader) }}
	bufferPool = sync.Pool{New: func() any { return new(bytesBuffer) }}
)

func getBytesReader(data []byte) *bytesReader {
	r := readerPool.Get().(*bytesReader)
	r.data, r.pos = data, 0
	return r
}

func putBytesReader(r *bytesReader) {
	r.data, r.pos = nil, 0
	readerPool.Put(r)
}

func getBytesBuffer() *bytesBuffer {
	b := bufferPool.Get().(*bytesBuffer)
	b.data = b.data[:0]
	return b
}

func putBytesBuffer(b *bytesBuffer) {
	if cap(b.data) > maxPooledBuffer {
		return
	}
	bufferPool.Put(b)
}
