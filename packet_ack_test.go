package mqttwire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeToBytes(t *testing.T, p Packet, maxPacketSize uint32) []byte {
	t.Helper()
	data, err := AppendPacket(nil, p, maxPacketSize)
	require.NoError(t, err)
	return data
}

func decodeFromBytes(t *testing.T, data []byte) Packet {
	t.Helper()
	p, n, err := ReadPacket(bytes.NewReader(data), 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	return p
}

func reasonProps(reason string, users ...StringPair) Properties {
	var p Properties
	if reason != "" {
		p.Set(PropReasonString, reason)
	}
	for _, up := range users {
		p.Add(PropUserProperty, up)
	}
	return p
}

func propsOf(id PropertyID, value any) Properties {
	var p Properties
	p.Set(id, value)
	return p
}

func TestPubrecWireFormat(t *testing.T) {
	tests := []struct {
		name string
		pkt  *PubrecPacket
		want []byte
	}{
		{
			name: "error code without properties",
			pkt:  &PubrecPacket{PacketID: 5, ReasonCode: ReasonTopicNameInvalid},
			want: []byte{0x50, 0x03, 0x00, 0x05, 0x90},
		},
		{
			name: "success without properties is omitted",
			pkt:  &PubrecPacket{PacketID: 5},
			want: []byte{0x50, 0x02, 0x00, 0x05},
		},
		{
			name: "reason string",
			pkt:  &PubrecPacket{PacketID: 9, ReasonCode: ReasonTopicNameInvalid, Props: reasonProps("reason")},
			want: []byte{0x50, 13, 0x00, 0x09, 0x90, 9, 0x1F, 0x00, 0x06, 'r', 'e', 'a', 's', 'o', 'n'},
		},
		{
			name: "success with a user property keeps the reason code",
			pkt:  &PubrecPacket{PacketID: 1, Props: reasonProps("", StringPair{"k", "v"})},
			want: []byte{0x50, 11, 0x00, 0x01, 0x00, 7, 0x26, 0x00, 0x01, 'k', 0x00, 0x01, 'v'},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeToBytes(t, tt.pkt, 0))

			var buf bytes.Buffer
			n, err := tt.pkt.Encode(&buf)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
			assert.Equal(t, tt.want, buf.Bytes())

			got := decodeFromBytes(t, tt.want)
			assert.Equal(t, tt.pkt, got)
		})
	}
}

func TestAckOmission(t *testing.T) {
	packets := []Packet{
		&PubackPacket{PacketID: 300},
		&PubrecPacket{PacketID: 300},
		&PubrelPacket{PacketID: 300},
		&PubcompPacket{PacketID: 300},
	}

	for _, p := range packets {
		t.Run(p.Type().String(), func(t *testing.T) {
			data := encodeToBytes(t, p, 0)
			require.Len(t, data, 4)
			assert.Equal(t, byte(2), data[1], "remaining length is the identifier only")
			assert.Equal(t, []byte{0x01, 0x2C}, data[2:])
		})
	}
}

func TestAckDecodeVariants(t *testing.T) {
	t.Run("reason code without property length", func(t *testing.T) {
		got := decodeFromBytes(t, []byte{0x40, 0x03, 0x00, 0x07, 0x10})
		assert.Equal(t, &PubackPacket{PacketID: 7, ReasonCode: ReasonNoMatchingSubscribers}, got)
	})

	t.Run("reason code with empty property block", func(t *testing.T) {
		got := decodeFromBytes(t, []byte{0x70, 0x04, 0x00, 0x07, 0x92, 0x00})
		assert.Equal(t, &PubcompPacket{PacketID: 7, ReasonCode: ReasonPacketIDNotFound}, got)
	})

	t.Run("PUBREL flags", func(t *testing.T) {
		got := decodeFromBytes(t, []byte{0x62, 0x02, 0x00, 0x01})
		assert.Equal(t, &PubrelPacket{PacketID: 1}, got)

		_, _, err := ReadPacket(bytes.NewReader([]byte{0x60, 0x02, 0x00, 0x01}), 0)
		assert.ErrorIs(t, err, ErrInvalidPacketFlags)
	})

	t.Run("property not allowed", func(t *testing.T) {
		data := []byte{0x40, 0x07, 0x00, 0x01, 0x00, 0x03, 0x21, 0x00, 0x0A}
		_, _, err := ReadPacket(bytes.NewReader(data), 0)
		assert.ErrorIs(t, err, ErrMalformedPacket)
	})
}

func TestAckValidate(t *testing.T) {
	tests := []struct {
		name    string
		pkt     Packet
		wantErr error
	}{
		{"zero packet id", &PubackPacket{}, ErrInvalidPacketID},
		{"PUBREL with PUBACK code", &PubrelPacket{PacketID: 1, ReasonCode: ReasonNoMatchingSubscribers}, ErrInvalidReasonCode},
		{"PUBCOMP with quota exceeded", &PubcompPacket{PacketID: 1, ReasonCode: ReasonQuotaExceeded}, ErrInvalidReasonCode},
		{"PUBREC packet id in use", &PubrecPacket{PacketID: 1, ReasonCode: ReasonPacketIDInUse}, nil},
		{"PUBACK not authorized", &PubackPacket{PacketID: 1, ReasonCode: ReasonNotAuthorized}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pkt.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				_, err = AppendPacket(nil, tt.pkt, 0)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAckDowngrade(t *testing.T) {
	users := []StringPair{{"trace", strings.Repeat("t", 20)}, {"node", "a"}}
	pkt := &PubackPacket{
		PacketID:   2,
		ReasonCode: ReasonQuotaExceeded,
		Props:      reasonProps(strings.Repeat("r", 40), users...),
	}
	full := encodeToBytes(t, pkt, 0)

	t.Run("fits", func(t *testing.T) {
		assert.Equal(t, full, encodeToBytes(t, pkt, uint32(len(full))))
	})

	t.Run("reason string dropped first", func(t *testing.T) {
		data := encodeToBytes(t, pkt, uint32(len(full)-1))
		got := decodeFromBytes(t, data).(*PubackPacket)
		assert.False(t, got.Props.Has(PropReasonString))
		assert.Equal(t, users, got.Props.UserProperties())
		assert.Equal(t, ReasonQuotaExceeded, got.ReasonCode)
	})

	t.Run("user properties dropped next", func(t *testing.T) {
		data := encodeToBytes(t, pkt, 10)
		assert.Equal(t, []byte{0x40, 0x03, 0x00, 0x02, 0x97}, data)
	})

	t.Run("nothing left to drop", func(t *testing.T) {
		_, err := AppendPacket(nil, pkt, 4)
		var sizeErr *SizeLimitError
		require.ErrorAs(t, err, &sizeErr)
		assert.True(t, sizeErr.MaximumPacketSize)
		assert.Equal(t, FieldRemainingLength, sizeErr.Field)
		assert.ErrorIs(t, err, ErrPacketTooLarge)
	})

	t.Run("packet itself is untouched", func(t *testing.T) {
		_ = encodeToBytes(t, pkt, 10)
		assert.True(t, pkt.Props.Has(PropReasonString))
		assert.Len(t, pkt.Props.UserProperties(), 2)
	})
}

func TestAckPacketIDAccessors(t *testing.T) {
	packets := []PacketWithID{&PubackPacket{}, &PubrecPacket{}, &PubrelPacket{}, &PubcompPacket{}}
	for _, p := range packets {
		p.SetPacketID(42)
		assert.Equal(t, uint16(42), p.GetPacketID(), p.Type().String())
	}
}
