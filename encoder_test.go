package mqttwire

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodersProviders(t *testing.T) {
	encoders := NewEncoders()

	for pt := PacketCONNECT; pt <= PacketAUTH; pt++ {
		p := encoders.Provider(pt)
		require.NotNil(t, p, pt.String())
		assert.Equal(t, pt, p.Type())
	}

	assert.Nil(t, encoders.Provider(0))
	assert.Nil(t, encoders.Provider(16))

	pubrec := encoders.Provider(PacketPUBREC)
	assert.Same(t, encoders.Provider(PacketPUBREL), pubrec.Next())
	assert.Nil(t, encoders.Provider(PacketPUBACK).Next())
}

func TestEncoderEncode(t *testing.T) {
	provider := NewEncoderProvider(PacketPUBACK, nil)
	enc := provider.Get()
	defer provider.Put(enc)

	data, err := enc.Encode(&PubackPacket{PacketID: 5, ReasonCode: ReasonNoMatchingSubscribers}, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x03, 0x00, 0x05, 0x10}, data)

	_, err = enc.Encode(&PubrecPacket{PacketID: 5}, 0)
	assert.ErrorIs(t, err, ErrInvalidPacketType)

	_, err = enc.Encode(&PubackPacket{}, 0)
	assert.ErrorIs(t, err, ErrInvalidPacketID)
}

func TestEncoderIsNotReentrant(t *testing.T) {
	provider := NewEncoderProvider(PacketPUBACK, nil)
	enc := provider.Get()

	enc.busy.Store(true)
	_, err := enc.Encode(&PubackPacket{PacketID: 1}, 0)
	assert.ErrorIs(t, err, ErrEncoderBusy)

	enc.busy.Store(false)
	_, err = enc.Encode(&PubackPacket{PacketID: 1}, 0)
	assert.NoError(t, err)
}

func TestEncoderProviderPutForeign(t *testing.T) {
	a := NewEncoderProvider(PacketPUBACK, nil)
	b := NewEncoderProvider(PacketPUBACK, nil)

	enc := a.Get()
	b.Put(enc)
	b.Put(nil)

	// still usable by its own provider
	data, err := enc.Encode(&PubackPacket{PacketID: 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x02, 0x00, 0x01}, data)
	a.Put(enc)
}

func TestEncodersWritePacketConcurrent(t *testing.T) {
	encoders := NewEncoders()

	var wg sync.WaitGroup
	results := make([][]byte, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var buf bytes.Buffer
			_, err := encoders.WritePacket(&buf, &PubackPacket{PacketID: uint16(i + 1)}, 0)
			assert.NoError(t, err)
			results[i] = buf.Bytes()
		}(i)
	}
	wg.Wait()

	for i, data := range results {
		assert.Equal(t, []byte{0x40, 0x02, 0x00, byte(i + 1)}, data)
	}
}

func TestAppendPacketKeepsPrefix(t *testing.T) {
	prefix := []byte{0xAA, 0xBB}

	out, err := AppendPacket(prefix, &PingreqPacket{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xC0, 0x00}, out)

	out, err = AppendPacket(prefix, &PubackPacket{}, 0)
	assert.Error(t, err)
	assert.Equal(t, prefix, out)
}

func BenchmarkEncodersWritePacket(b *testing.B) {
	encoders := NewEncoders()
	pkt := &PubackPacket{PacketID: 1, ReasonCode: ReasonNoMatchingSubscribers}
	var buf bytes.Buffer

	b.ReportAllocs()
	for b.Loop() {
		buf.Reset()
		_, _ = encoders.WritePacket(&buf, pkt, 0)
	}
}
