package mqttwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacket(t *testing.T) {
	for pt := PacketCONNECT; pt <= PacketAUTH; pt++ {
		t.Run(pt.String(), func(t *testing.T) {
			p, err := newPacket(pt)
			require.NoError(t, err)
			assert.Equal(t, pt, p.Type())

			_, ok := p.(encodable)
			assert.True(t, ok, "every packet type must be encodable")
		})
	}

	_, err := newPacket(0)
	assert.ErrorIs(t, err, ErrUnknownPacketType)
}

func TestPacketInterfaces(t *testing.T) {
	withID := []PacketWithID{
		&PublishPacket{},
		&PubackPacket{},
		&PubrecPacket{},
		&PubrelPacket{},
		&PubcompPacket{},
		&SubscribePacket{},
		&SubackPacket{},
		&UnsubscribePacket{},
		&UnsubackPacket{},
	}
	for _, p := range withID {
		t.Run(p.Type().String()+" id", func(t *testing.T) {
			p.SetPacketID(77)
			assert.Equal(t, uint16(77), p.GetPacketID())
		})
	}

	withProps := []PacketWithProperties{
		&ConnectPacket{},
		&ConnackPacket{},
		&PublishPacket{},
		&PubackPacket{},
		&SubscribePacket{},
		&SubackPacket{},
		&UnsubscribePacket{},
		&UnsubackPacket{},
		&DisconnectPacket{},
		&AuthPacket{},
	}
	for _, p := range withProps {
		t.Run(p.Type().String()+" properties", func(t *testing.T) {
			p.Properties().AddUserProperty("k", "v")
			assert.Equal(t, 1, p.Properties().Len())
		})
	}
}

func TestCheckHeader(t *testing.T) {
	tests := []struct {
		name   string
		header FixedHeader
		want   PacketType
		err    error
	}{
		{"match", FixedHeader{PacketType: PacketPUBREL, Flags: 0x02}, PacketPUBREL, nil},
		{"wrong type", FixedHeader{PacketType: PacketPUBACK}, PacketPUBREL, ErrInvalidPacketType},
		{"wrong flags", FixedHeader{PacketType: PacketPUBREL}, PacketPUBREL, ErrInvalidPacketFlags},
		{"publish flags vary", FixedHeader{PacketType: PacketPUBLISH, Flags: 0x0B}, PacketPUBLISH, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, checkHeader(tt.header, tt.want), tt.err)
		})
	}
}
