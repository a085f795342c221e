package mqttwire

import "fmt"

// PropertyContext identifies where a property block appears.
type PropertyContext byte

const (
	PropCtxCONNECT PropertyContext = iota + 1
	PropCtxCONNACK
	PropCtxPUBLISH
	PropCtxWILL
	PropCtxPUBACK
	PropCtxPUBREC
	PropCtxPUBREL
	PropCtxPUBCOMP
	PropCtxSUBSCRIBE
	PropCtxSUBACK
	PropCtxUNSUBSCRIBE
	PropCtxUNSUBACK
	PropCtxDISCONNECT
	PropCtxAUTH
)

var ackProperties = []PropertyID{PropReasonString, PropUserProperty}

var allowedProperties = map[PropertyContext][]PropertyID{
	PropCtxCONNECT: {
		PropSessionExpiryInterval, PropReceiveMaximum, PropMaximumPacketSize,
		PropTopicAliasMaximum, PropRequestResponseInfo, PropRequestProblemInfo,
		PropUserProperty, PropAuthenticationMethod, PropAuthenticationData,
	},
	PropCtxCONNACK: {
		PropSessionExpiryInterval, PropReceiveMaximum, PropMaximumQoS,
		PropRetainAvailable, PropMaximumPacketSize, PropAssignedClientIdentifier,
		PropTopicAliasMaximum, PropReasonString, PropUserProperty,
		PropWildcardSubAvailable, PropSubscriptionIDAvailable, PropSharedSubAvailable,
		PropServerKeepAlive, PropResponseInformation, PropServerReference,
		PropAuthenticationMethod, PropAuthenticationData,
	},
	PropCtxPUBLISH: {
		PropPayloadFormatIndicator, PropMessageExpiryInterval, PropTopicAlias,
		PropResponseTopic, PropCorrelationData, PropUserProperty,
		PropSubscriptionIdentifier, PropContentType,
	},
	PropCtxWILL: {
		PropWillDelayInterval, PropPayloadFormatIndicator, PropMessageExpiryInterval,
		PropContentType, PropResponseTopic, PropCorrelationData, PropUserProperty,
	},
	PropCtxPUBACK:      ackProperties,
	PropCtxPUBREC:      ackProperties,
	PropCtxPUBREL:      ackProperties,
	PropCtxPUBCOMP:     ackProperties,
	PropCtxSUBSCRIBE:   {PropSubscriptionIdentifier, PropUserProperty},
	PropCtxSUBACK:      ackProperties,
	PropCtxUNSUBSCRIBE: {PropUserProperty},
	PropCtxUNSUBACK:    ackProperties,
	PropCtxDISCONNECT: {
		PropSessionExpiryInterval, PropReasonString, PropUserProperty, PropServerReference,
	},
	PropCtxAUTH: {
		PropAuthenticationMethod, PropAuthenticationData, PropReasonString, PropUserProperty,
	},
}

func allowedIn(ctx PropertyContext, id PropertyID) bool {
	for _, allowed := range allowedProperties[ctx] {
		if allowed == id {
			return true
		}
	}
	return false
}

// ValidateFor checks that every property is allowed in ctx, carries a value
// of the right type, and that only repeatable properties occur more than once.
func (p *Properties) ValidateFor(ctx PropertyContext) error {
	if p.Len() == 0 {
		return nil
	}

	var seen map[PropertyID]struct{}
	for i := range p.props {
		prop := &p.props[i]

		if !allowedIn(ctx, prop.id) {
			return fmt.Errorf("%w: %s", ErrPropertyNotAllowed, prop.id)
		}
		if !validPropertyValue(prop) {
			return fmt.Errorf("%w: %s", ErrInvalidPropertyType, prop.id)
		}

		if prop.id.Repeatable() {
			continue
		}
		if seen == nil {
			seen = make(map[PropertyID]struct{}, len(p.props))
		}
		if _, dup := seen[prop.id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateProperty, prop.id)
		}
		seen[prop.id] = struct{}{}
	}

	return nil
}

func validPropertyValue(prop *property) bool {
	switch prop.id.Type() {
	case PropTypeByte:
		_, ok := prop.value.(byte)
		return ok
	case PropTypeTwoByteInt:
		_, ok := prop.value.(uint16)
		return ok
	case PropTypeFourByteInt:
		_, ok := prop.value.(uint32)
		return ok
	case PropTypeVarInt:
		v, ok := prop.value.(uint32)
		return ok && v <= maxVarint
	case PropTypeString:
		_, ok := prop.value.(string)
		return ok
	case PropTypeBinary:
		_, ok := prop.value.([]byte)
		return ok
	case PropTypeStringPair:
		_, ok := prop.value.(StringPair)
		return ok
	default:
		return false
	}
}
