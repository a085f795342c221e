package mqttwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonCodeString(t *testing.T) {
	tests := []struct {
		code ReasonCode
		want string
	}{
		{ReasonSuccess, "Success"},
		{ReasonGrantedQoS1, "Granted QoS 1"},
		{ReasonDisconnectWithWill, "Disconnect with Will Message"},
		{ReasonContinueAuth, "Continue authentication"},
		{ReasonReAuth, "Re-authenticate"},
		{ReasonMalformedPacket, "Malformed Packet"},
		{ReasonNotAuthorized, "Not authorized"},
		{ReasonBadAuthMethod, "Bad authentication method"},
		{ReasonPacketTooLarge, "Packet too large"},
		{ReasonCode(0xFF), "Unknown reason code"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.String())
		})
	}
}

func TestReasonCodeIsError(t *testing.T) {
	tests := []struct {
		code    ReasonCode
		isError bool
	}{
		{ReasonSuccess, false},
		{ReasonGrantedQoS2, false},
		{ReasonContinueAuth, false},
		{ReasonReAuth, false},
		{ReasonCode(0x7F), false},
		{ReasonCode(0x80), true},
		{ReasonNotAuthorized, true},
		{ReasonWildcardSubsNotSupported, true},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.isError, tt.code.IsError())
		})
	}
}

func TestReasonCodeValidFor(t *testing.T) {
	tests := []struct {
		packetType PacketType
		valid      []ReasonCode
		invalid    []ReasonCode
	}{
		{
			packetType: PacketCONNACK,
			valid:      []ReasonCode{ReasonSuccess, ReasonBadUserNameOrPassword, ReasonBadAuthMethod, ReasonBanned, ReasonServerMoved},
			invalid:    []ReasonCode{ReasonGrantedQoS1, ReasonContinueAuth, ReasonReAuth, ReasonSessionTakenOver},
		},
		{
			packetType: PacketPUBACK,
			valid:      []ReasonCode{ReasonSuccess, ReasonNoMatchingSubscribers, ReasonQuotaExceeded, ReasonPayloadFormatInvalid},
			invalid:    []ReasonCode{ReasonPacketIDNotFound, ReasonMalformedPacket, ReasonContinueAuth},
		},
		{
			packetType: PacketPUBREC,
			valid:      []ReasonCode{ReasonSuccess, ReasonNoMatchingSubscribers, ReasonTopicNameInvalid, ReasonPacketIDInUse},
			invalid:    []ReasonCode{ReasonPacketIDNotFound, ReasonServerBusy},
		},
		{
			packetType: PacketPUBREL,
			valid:      []ReasonCode{ReasonSuccess, ReasonPacketIDNotFound},
			invalid:    []ReasonCode{ReasonNoMatchingSubscribers, ReasonUnspecifiedError, ReasonNotAuthorized},
		},
		{
			packetType: PacketPUBCOMP,
			valid:      []ReasonCode{ReasonSuccess, ReasonPacketIDNotFound},
			invalid:    []ReasonCode{ReasonQuotaExceeded},
		},
		{
			packetType: PacketSUBACK,
			valid:      []ReasonCode{ReasonGrantedQoS0, ReasonGrantedQoS1, ReasonGrantedQoS2, ReasonSharedSubsNotSupported},
			invalid:    []ReasonCode{ReasonNoSubscriptionExisted, ReasonPacketTooLarge},
		},
		{
			packetType: PacketUNSUBACK,
			valid:      []ReasonCode{ReasonSuccess, ReasonNoSubscriptionExisted, ReasonTopicFilterInvalid},
			invalid:    []ReasonCode{ReasonGrantedQoS1, ReasonQuotaExceeded},
		},
		{
			packetType: PacketDISCONNECT,
			valid:      []ReasonCode{ReasonNormalDisconnection, ReasonDisconnectWithWill, ReasonSessionTakenOver, ReasonBadAuthMethod, ReasonMaxConnectTime},
			invalid:    []ReasonCode{ReasonGrantedQoS1, ReasonContinueAuth, ReasonBanned, ReasonPacketIDNotFound},
		},
		{
			packetType: PacketAUTH,
			valid:      []ReasonCode{ReasonSuccess, ReasonContinueAuth, ReasonReAuth},
			invalid:    []ReasonCode{ReasonUnspecifiedError, ReasonNotAuthorized, ReasonBadAuthMethod},
		},
		{
			packetType: PacketPUBLISH,
			invalid:    []ReasonCode{ReasonSuccess},
		},
	}

	for _, tt := range tests {
		t.Run(tt.packetType.String(), func(t *testing.T) {
			for _, code := range tt.valid {
				assert.True(t, code.ValidFor(tt.packetType), "expected %s to be valid", code)
			}
			for _, code := range tt.invalid {
				assert.False(t, code.ValidFor(tt.packetType), "expected %s to be invalid", code)
			}
		})
	}
}

func TestDefaultReasonCode(t *testing.T) {
	for pt := PacketCONNECT; pt <= PacketAUTH; pt++ {
		assert.Equal(t, ReasonCode(0x00), DefaultReasonCode(pt), pt.String())
	}
	assert.Equal(t, ReasonNormalDisconnection, DefaultReasonCode(PacketDISCONNECT))
}

func TestGrantedQoS0Alias(t *testing.T) {
	assert.Equal(t, ReasonSuccess, ReasonGrantedQoS0)
	assert.Equal(t, ReasonCode(0x00), ReasonGrantedQoS0)
}
