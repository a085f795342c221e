package mqttwire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectMinimalWireFormat(t *testing.T) {
	pkt := &ConnectPacket{ClientID: "c1", CleanStart: true, KeepAlive: 60}
	want := []byte{
		0x10, 0x0F,
		0x00, 0x04, 'M', 'Q', 'T', 'T',
		0x05,
		0x02,
		0x00, 0x3C,
		0x00,
		0x00, 0x02, 'c', '1',
	}

	assert.Equal(t, want, encodeToBytes(t, pkt, 0))
	assert.Equal(t, pkt, decodeFromBytes(t, want))
}

func TestConnectRoundTrip(t *testing.T) {
	pkt := &ConnectPacket{
		ClientID:  "device-17",
		KeepAlive: 30,
		Username:  "user",
		Password:  []byte("secret"),
		Will: &Will{
			Topic:   "devices/17/status",
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
			Props:   propsOf(PropWillDelayInterval, uint32(5)),
		},
	}
	pkt.Props.Set(PropSessionExpiryInterval, uint32(3600))
	pkt.Props.Set(PropAuthenticationMethod, "SCRAM-SHA-256")
	pkt.Props.Set(PropAuthenticationData, []byte("n,,n=user,r=abc"))
	pkt.Props.AddUserProperty("app", "test")

	data := encodeToBytes(t, pkt, 0)
	got := decodeFromBytes(t, data).(*ConnectPacket)

	assert.Equal(t, pkt, got)
	assert.Equal(t, "SCRAM-SHA-256", got.AuthMethod())
	assert.Equal(t, byte(0x80|0x40|0x20|0x08|0x04), data[9], "connect flags")
}

func TestConnectDecodeErrors(t *testing.T) {
	valid := encodeToBytes(t, &ConnectPacket{ClientID: "c", CleanStart: true}, 0)

	tests := []struct {
		name    string
		mutate  func(b []byte)
		wantErr error
	}{
		{"protocol name", func(b []byte) { b[4] = 'X' }, ErrInvalidProtocolName},
		{"protocol version", func(b []byte) { b[8] = 4 }, ErrInvalidProtocolVersion},
		{"reserved flag", func(b []byte) { b[9] |= 0x01 }, ErrInvalidConnectFlags},
		{"will qos without will", func(b []byte) { b[9] |= 0x08 }, ErrInvalidConnectFlags},
		{"will retain without will", func(b []byte) { b[9] |= 0x20 }, ErrInvalidConnectFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Clone(valid)
			tt.mutate(data)
			_, _, err := ReadPacket(bytes.NewReader(data), 0)
			assert.ErrorIs(t, err, ErrMalformedPacket)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConnectValidate(t *testing.T) {
	tests := []struct {
		name    string
		pkt     *ConnectPacket
		wantErr error
	}{
		{"clean start without client id", &ConnectPacket{CleanStart: true}, nil},
		{"session resume without client id", &ConnectPacket{}, ErrClientIDRequired},
		{"will qos 3", &ConnectPacket{CleanStart: true, Will: &Will{Topic: "t", QoS: 3}}, ErrInvalidConnectFlags},
		{
			"auth data without method",
			&ConnectPacket{CleanStart: true, Props: propsOf(PropAuthenticationData, []byte{1})},
			ErrAuthMethodRequired,
		},
		{
			"will property not allowed",
			&ConnectPacket{CleanStart: true, Will: &Will{Topic: "t", Props: propsOf(PropTopicAlias, uint16(1))}},
			ErrPropertyNotAllowed,
		},
		{
			"connect property not allowed",
			&ConnectPacket{CleanStart: true, Props: propsOf(PropReasonString, "x")},
			ErrPropertyNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pkt.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConnectIsNeverDowngraded(t *testing.T) {
	pkt := &ConnectPacket{ClientID: "c", CleanStart: true}
	pkt.Props.AddUserProperty("k", "a long enough value to overflow")

	_, err := AppendPacket(nil, pkt, 20)
	require.ErrorIs(t, err, ErrPacketTooLarge)
}
