package mqttwire

import "fmt"

// Fields named by SizeLimitError.
const (
	FieldRemainingLength = "remaining length"
	FieldPropertyLength  = "property length"
)

// SizeLimitError is returned when a packet cannot be encoded because a length
// field overflows the variable byte integer range, or because the whole packet
// is larger than the maximum packet size in force.
type SizeLimitError struct {
	Field string
	Size  int
	Limit int

	// MaximumPacketSize is set when Limit is a negotiated maximum packet size
	// rather than the variable byte integer range.
	MaximumPacketSize bool
}

func (e *SizeLimitError) Error() string {
	if e.MaximumPacketSize {
		return fmt.Sprintf("maximum packet size exceeded for %s: %d > %d", e.Field, e.Size, e.Limit)
	}
	return fmt.Sprintf("variable byte integer size exceeded for %s: %d > %d", e.Field, e.Size, e.Limit)
}

func (e *SizeLimitError) Unwrap() error { return ErrPacketTooLarge }

// packetSize is the result of the two pass size calculation.
type packetSize struct {
	// propertyLength is the content length of the property block, excluding
	// its own length prefix. It is -1 when the block is not written at all.
	propertyLength  int
	remainingLength int
}

// packetLength is the full encoded length including the fixed header.
func (s packetSize) packetLength() int {
	return 1 + varintLen(s.remainingLength) + s.remainingLength
}

func varintLen(n int) int {
	if n < 0 || n > maxVarint {
		return maxVarintBytes + 1
	}
	return varintSize(uint32(n))
}

// propertyLength is the first pass: the summed size of every property.
func propertyLength(props *Properties) (int, error) {
	length := 0
	for i := range props.Len() {
		length += propertySize(&props.props[i])
	}
	if length > maxVarint {
		return 0, &SizeLimitError{Field: FieldPropertyLength, Size: length, Limit: maxVarint}
	}
	return length, nil
}

// remainingLength is the second pass. fixed counts the variable header bytes
// before the property block (packet identifier, reason code, ...), payload
// the bytes after it. A negative propLen means the block is left out.
func remainingLength(fixed, propLen, payload int) (packetSize, error) {
	remaining := fixed + payload
	if propLen >= 0 {
		remaining += varintLen(propLen) + propLen
	}
	if remaining > maxVarint {
		return packetSize{}, &SizeLimitError{Field: FieldRemainingLength, Size: remaining, Limit: maxVarint}
	}
	return packetSize{propertyLength: propLen, remainingLength: remaining}, nil
}

// checkPacketSize enforces a negotiated maximum packet size; zero means none.
func checkPacketSize(size packetSize, maxPacketSize uint32) error {
	if maxPacketSize == 0 {
		return nil
	}
	if total := size.packetLength(); total > int(maxPacketSize) {
		return &SizeLimitError{
			Field:             FieldRemainingLength,
			Size:              total,
			Limit:             int(maxPacketSize),
			MaximumPacketSize: true,
		}
	}
	return nil
}

// measureFunc sizes a packet body for a candidate property set.
type measureFunc func(props *Properties) (packetSize, error)

// fitPacketSize measures the packet and, when downgrade is allowed, drops the
// reason string and then the user properties until it fits maxPacketSize.
// Variable byte integer overflow is never downgraded.
func fitPacketSize(props *Properties, maxPacketSize uint32, downgrade bool, measure measureFunc) (packetSize, *Properties, error) {
	for {
		size, err := measure(props)
		if err != nil {
			return packetSize{}, nil, err
		}

		err = checkPacketSize(size, maxPacketSize)
		if err == nil {
			return size, props, nil
		}
		if !downgrade {
			return packetSize{}, nil, err
		}

		switch {
		case props.Has(PropReasonString):
			reduced := props.Without(PropReasonString)
			props = &reduced
		case props.Has(PropUserProperty):
			reduced := props.Without(PropUserProperty)
			props = &reduced
		default:
			return packetSize{}, nil, err
		}
	}
}
