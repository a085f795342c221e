package mqttwire

// ReasonCode is a one-byte outcome code. Its meaning is scoped by the packet
// type that carries it.
type ReasonCode byte

const (
	ReasonSuccess                    ReasonCode = 0x00 // also Normal disconnection and Granted QoS 0
	ReasonGrantedQoS1                ReasonCode = 0x01
	ReasonGrantedQoS2                ReasonCode = 0x02
	ReasonDisconnectWithWill         ReasonCode = 0x04
	ReasonNoMatchingSubscribers      ReasonCode = 0x10
	ReasonNoSubscriptionExisted      ReasonCode = 0x11
	ReasonContinueAuth               ReasonCode = 0x18
	ReasonReAuth                     ReasonCode = 0x19
	ReasonUnspecifiedError           ReasonCode = 0x80
	ReasonMalformedPacket            ReasonCode = 0x81
	ReasonProtocolError              ReasonCode = 0x82
	ReasonImplSpecificError          ReasonCode = 0x83
	ReasonUnsupportedProtocolVersion ReasonCode = 0x84
	ReasonClientIDNotValid           ReasonCode = 0x85
	ReasonBadUserNameOrPassword      ReasonCode = 0x86
	ReasonNotAuthorized              ReasonCode = 0x87
	ReasonServerUnavailable          ReasonCode = 0x88
	ReasonServerBusy                 ReasonCode = 0x89
	ReasonBanned                     ReasonCode = 0x8A
	ReasonServerShuttingDown         ReasonCode = 0x8B
	ReasonBadAuthMethod              ReasonCode = 0x8C
	ReasonKeepAliveTimeout           ReasonCode = 0x8D
	ReasonSessionTakenOver           ReasonCode = 0x8E
	ReasonTopicFilterInvalid         ReasonCode = 0x8F
	ReasonTopicNameInvalid           ReasonCode = 0x90
	ReasonPacketIDInUse              ReasonCode = 0x91
	ReasonPacketIDNotFound           ReasonCode = 0x92
	ReasonReceiveMaxExceeded         ReasonCode = 0x93
	ReasonTopicAliasInvalid          ReasonCode = 0x94
	ReasonPacketTooLarge             ReasonCode = 0x95
	ReasonMessageRateTooHigh         ReasonCode = 0x96
	ReasonQuotaExceeded              ReasonCode = 0x97
	ReasonAdminAction                ReasonCode = 0x98
	ReasonPayloadFormatInvalid       ReasonCode = 0x99
	ReasonRetainNotSupported         ReasonCode = 0x9A
	ReasonQoSNotSupported            ReasonCode = 0x9B
	ReasonUseAnotherServer           ReasonCode = 0x9C
	ReasonServerMoved                ReasonCode = 0x9D
	ReasonSharedSubsNotSupported     ReasonCode = 0x9E
	ReasonConnectionRateExceeded     ReasonCode = 0x9F
	ReasonMaxConnectTime             ReasonCode = 0xA0
	ReasonSubIDsNotSupported         ReasonCode = 0xA1
	ReasonWildcardSubsNotSupported   ReasonCode = 0xA2
)

// Aliases for the packet specific names of 0x00.
const (
	ReasonNormalDisconnection = ReasonSuccess
	ReasonGrantedQoS0         = ReasonSuccess
)

// packetSet is a bit set indexed by PacketType.
type packetSet uint16

func (s packetSet) has(t PacketType) bool { return s&(1<<t) != 0 }

const (
	pCONNACK    = packetSet(1 << PacketCONNACK)
	pPUBACK     = packetSet(1 << PacketPUBACK)
	pPUBREC     = packetSet(1 << PacketPUBREC)
	pPUBREL     = packetSet(1 << PacketPUBREL)
	pPUBCOMP    = packetSet(1 << PacketPUBCOMP)
	pSUBACK     = packetSet(1 << PacketSUBACK)
	pUNSUBACK   = packetSet(1 << PacketUNSUBACK)
	pDISCONNECT = packetSet(1 << PacketDISCONNECT)
	pAUTH       = packetSet(1 << PacketAUTH)

	pPublishAcks = pPUBACK | pPUBREC
	pAllAcks     = pCONNACK | pPublishAcks | pSUBACK | pUNSUBACK | pDISCONNECT
)

type reasonInfo struct {
	name  string
	valid packetSet
}

var reasonCodes = map[ReasonCode]reasonInfo{
	ReasonSuccess:                    {"Success", pCONNACK | pPublishAcks | pPUBREL | pPUBCOMP | pSUBACK | pUNSUBACK | pDISCONNECT | pAUTH},
	ReasonGrantedQoS1:                {"Granted QoS 1", pSUBACK},
	ReasonGrantedQoS2:                {"Granted QoS 2", pSUBACK},
	ReasonDisconnectWithWill:         {"Disconnect with Will Message", pDISCONNECT},
	ReasonNoMatchingSubscribers:      {"No matching subscribers", pPublishAcks},
	ReasonNoSubscriptionExisted:      {"No subscription existed", pUNSUBACK},
	ReasonContinueAuth:               {"Continue authentication", pAUTH},
	ReasonReAuth:                     {"Re-authenticate", pAUTH},
	ReasonUnspecifiedError:           {"Unspecified error", pAllAcks},
	ReasonMalformedPacket:            {"Malformed Packet", pCONNACK | pDISCONNECT},
	ReasonProtocolError:              {"Protocol Error", pCONNACK | pDISCONNECT},
	ReasonImplSpecificError:          {"Implementation specific error", pAllAcks},
	ReasonUnsupportedProtocolVersion: {"Unsupported Protocol Version", pCONNACK},
	ReasonClientIDNotValid:           {"Client Identifier not valid", pCONNACK},
	ReasonBadUserNameOrPassword:      {"Bad User Name or Password", pCONNACK},
	ReasonNotAuthorized:              {"Not authorized", pAllAcks},
	ReasonServerUnavailable:          {"Server unavailable", pCONNACK},
	ReasonServerBusy:                 {"Server busy", pCONNACK | pDISCONNECT},
	ReasonBanned:                     {"Banned", pCONNACK},
	ReasonServerShuttingDown:         {"Server shutting down", pDISCONNECT},
	ReasonBadAuthMethod:              {"Bad authentication method", pCONNACK | pDISCONNECT},
	ReasonKeepAliveTimeout:           {"Keep Alive timeout", pDISCONNECT},
	ReasonSessionTakenOver:           {"Session taken over", pDISCONNECT},
	ReasonTopicFilterInvalid:         {"Topic Filter invalid", pSUBACK | pUNSUBACK | pDISCONNECT},
	ReasonTopicNameInvalid:           {"Topic Name invalid", pCONNACK | pPublishAcks | pDISCONNECT},
	ReasonPacketIDInUse:              {"Packet Identifier in use", pPublishAcks | pSUBACK | pUNSUBACK},
	ReasonPacketIDNotFound:           {"Packet Identifier not found", pPUBREL | pPUBCOMP},
	ReasonReceiveMaxExceeded:         {"Receive Maximum exceeded", pDISCONNECT},
	ReasonTopicAliasInvalid:          {"Topic Alias invalid", pDISCONNECT},
	ReasonPacketTooLarge:             {"Packet too large", pCONNACK | pDISCONNECT},
	ReasonMessageRateTooHigh:         {"Message rate too high", pDISCONNECT},
	ReasonQuotaExceeded:              {"Quota exceeded", pCONNACK | pPublishAcks | pSUBACK | pDISCONNECT},
	ReasonAdminAction:                {"Administrative action", pDISCONNECT},
	ReasonPayloadFormatInvalid:       {"Payload format invalid", pCONNACK | pPublishAcks | pDISCONNECT},
	ReasonRetainNotSupported:         {"Retain not supported", pCONNACK | pDISCONNECT},
	ReasonQoSNotSupported:            {"QoS not supported", pCONNACK | pDISCONNECT},
	ReasonUseAnotherServer:           {"Use another server", pCONNACK | pDISCONNECT},
	ReasonServerMoved:                {"Server moved", pCONNACK | pDISCONNECT},
	ReasonSharedSubsNotSupported:     {"Shared Subscriptions not supported", pSUBACK | pDISCONNECT},
	ReasonConnectionRateExceeded:     {"Connection rate exceeded", pCONNACK | pDISCONNECT},
	ReasonMaxConnectTime:             {"Maximum connect time", pDISCONNECT},
	ReasonSubIDsNotSupported:         {"Subscription Identifiers not supported", pSUBACK | pDISCONNECT},
	ReasonWildcardSubsNotSupported:   {"Wildcard Subscriptions not supported", pSUBACK | pDISCONNECT},
}

// String returns the reason code name.
func (r ReasonCode) String() string {
	if info, ok := reasonCodes[r]; ok {
		return info.name
	}
	return "Unknown reason code"
}

// IsError reports whether r signals a failure (0x80 and above).
func (r ReasonCode) IsError() bool {
	return r >= 0x80
}

// ValidFor reports whether r may be carried by a packet of type t.
func (r ReasonCode) ValidFor(t PacketType) bool {
	return reasonCodes[r].valid.has(t)
}

// DefaultReasonCode is the reason code a packet type implies when the reason
// code byte is omitted from the wire.
func DefaultReasonCode(t PacketType) ReasonCode {
	switch t {
	case PacketDISCONNECT:
		return ReasonNormalDisconnection
	default:
		return ReasonSuccess
	}
}
