package mqttwire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnsubscribeWireFormat(t *testing.T) {
	pkt := &UnsubscribePacket{PacketID: 2, TopicFilters: []string{"a/b"}}

	data := encodeToBytes(t, pkt, 0)
	assert.Equal(t, []byte{0xA2, 0x08, 0x00, 0x02, 0x00, 0x00, 0x03, 'a', '/', 'b'}, data)
	assert.Equal(t, pkt, decodeFromBytes(t, data))
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	pkt := &UnsubscribePacket{
		PacketID:     9,
		TopicFilters: []string{"home/+/temperature", "alerts/#"},
		Props:        reasonProps("", StringPair{Key: "k", Value: "v"}),
	}

	assert.Equal(t, pkt, decodeFromBytes(t, encodeToBytes(t, pkt, 0)))
}

func TestUnsubscribeDecodeTruncatedFilter(t *testing.T) {
	data := []byte{0xA2, 0x05, 0x00, 0x02, 0x00, 0x00, 0x03}

	_, _, err := ReadPacket(bytes.NewReader(data), 0)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestUnsubscribeValidate(t *testing.T) {
	tests := []struct {
		name string
		pkt  *UnsubscribePacket
		err  error
	}{
		{
			name: "valid",
			pkt:  &UnsubscribePacket{PacketID: 1, TopicFilters: []string{"a"}},
		},
		{
			name: "zero packet id",
			pkt:  &UnsubscribePacket{TopicFilters: []string{"a"}},
			err:  ErrInvalidPacketID,
		},
		{
			name: "no filters",
			pkt:  &UnsubscribePacket{PacketID: 1},
			err:  ErrProtocolViolation,
		},
		{
			name: "empty filter",
			pkt:  &UnsubscribePacket{PacketID: 1, TopicFilters: []string{""}},
			err:  ErrProtocolViolation,
		},
		{
			name: "property not allowed",
			pkt:  &UnsubscribePacket{PacketID: 1, TopicFilters: []string{"a"}, Props: propsOf(PropReasonString, "x")},
			err:  ErrPropertyNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pkt.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
