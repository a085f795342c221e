package mqttwire

import (
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf8"
)

// Encoding errors.
var (
	ErrStringTooLong      = errors.New("string exceeds maximum length of 65535 bytes")
	ErrBinaryTooLong      = errors.New("binary data exceeds maximum length of 65535 bytes")
	ErrInvalidUTF8        = errors.New("invalid UTF-8 string")
	ErrStringContainsNull = errors.New("string contains null character")
	ErrVarintTooLarge     = errors.New("variable byte integer exceeds maximum value")
	ErrVarintMalformed    = errors.New("malformed variable byte integer")
	ErrVarintOverlong     = errors.New("variable byte integer uses more bytes than necessary")
	ErrInsufficientData   = errors.New("length prefix exceeds remaining data")
)

const (
	maxUint16         = 65535
	maxVarint         = 268435455 // 0x0FFFFFFF
	maxVarintBytes    = 4
	varintContinueBit = 0x80
	varintValueMask   = 0x7F
)

// readFull is io.ReadFull that reports a short length-prefixed field as ErrInsufficientData.
func readFull(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || (err == io.EOF && len(buf) > 0) {
		return n, ErrInsufficientData
	}
	return n, err
}

func validString(s string) error {
	if len(s) > maxUint16 {
		return ErrStringTooLong
	}
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}
	for i := range len(s) {
		if s[i] == 0 {
			return ErrStringContainsNull
		}
	}
	return nil
}

// encodeString writes a UTF-8 string with 2-byte length prefix to w.
func encodeString(w io.Writer, s string) (int, error) {
	if err := validString(s); err != nil {
		return 0, err
	}

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))

	n, err := w.Write(lenBuf[:])
	if err != nil {
		return n, err
	}

	n2, err := io.WriteString(w, s)
	return n + n2, err
}

// decodeString reads a UTF-8 string with 2-byte length prefix from r.
func decodeString(r io.Reader) (string, int, error) {
	buf, n, err := decodeBinary(r)
	if err != nil {
		return "", n, err
	}

	if !utf8.Valid(buf) {
		return "", n, ErrInvalidUTF8
	}
	for i := range len(buf) {
		if buf[i] == 0 {
			return "", n, ErrStringContainsNull
		}
	}

	return string(buf), n, nil
}

// encodeBinary writes binary data with 2-byte length prefix to w.
func encodeBinary(w io.Writer, data []byte) (int, error) {
	if len(data) > maxUint16 {
		return 0, ErrBinaryTooLong
	}

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(data)))

	n, err := w.Write(lenBuf[:])
	if err != nil {
		return n, err
	}

	n2, err := w.Write(data)
	return n + n2, err
}

// decodeBinary reads binary data with 2-byte length prefix from r.
func decodeBinary(r io.Reader) ([]byte, int, error) {
	var lenBuf [2]byte
	n, err := readFull(r, lenBuf[:])
	if err != nil {
		return nil, n, err
	}

	length := binary.BigEndian.Uint16(lenBuf[:])
	if length == 0 {
		return nil, n, nil
	}

	buf := make([]byte, length)
	n2, err := readFull(r, buf)
	n += n2
	if err != nil {
		return nil, n, err
	}

	return buf, n, nil
}

// StringPair is a UTF-8 key/value pair, the value type of a user property.
type StringPair struct {
	Key   string
	Value string
}

func encodeStringPair(w io.Writer, pair StringPair) (int, error) {
	n, err := encodeString(w, pair.Key)
	if err != nil {
		return n, err
	}

	n2, err := encodeString(w, pair.Value)
	return n + n2, err
}

func decodeStringPair(r io.Reader) (StringPair, int, error) {
	key, n, err := decodeString(r)
	if err != nil {
		return StringPair{}, n, err
	}

	value, n2, err := decodeString(r)
	n += n2
	if err != nil {
		return StringPair{}, n, err
	}

	return StringPair{Key: key, Value: value}, n, nil
}

func encodeUint16(w io.Writer, v uint16) (int, error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return w.Write(buf[:])
}

func decodeUint16(r io.Reader) (uint16, int, error) {
	var buf [2]byte
	n, err := readFull(r, buf[:])
	if err != nil {
		return 0, n, err
	}
	return binary.BigEndian.Uint16(buf[:]), n, nil
}

func decodeByte(r io.Reader) (byte, int, error) {
	var buf [1]byte
	n, err := readFull(r, buf[:])
	return buf[0], n, err
}

// encodeVarint writes a variable byte integer to w.
func encodeVarint(w io.Writer, value uint32) (int, error) {
	var buf [maxVarintBytes]byte
	n, err := putVarint(buf[:], value)
	if err != nil {
		return 0, err
	}
	return w.Write(buf[:n])
}

// putVarint encodes value into buf, which must hold at least 4 bytes.
func putVarint(buf []byte, value uint32) (int, error) {
	if value > maxVarint {
		return 0, ErrVarintTooLarge
	}

	n := 0
	for {
		encodedByte := byte(value & varintValueMask)
		value >>= 7
		if value > 0 {
			encodedByte |= varintContinueBit
		}
		buf[n] = encodedByte
		n++
		if value == 0 {
			return n, nil
		}
	}
}

// decodeVarint reads a variable byte integer from r.
// A fourth byte that still carries the continuation bit is malformed, and so
// is an encoding that is longer than needed.
func decodeVarint(r io.Reader) (uint32, int, error) {
	var value uint32
	var buf [1]byte

	for i := range maxVarintBytes {
		n, err := io.ReadFull(r, buf[:])
		if err != nil {
			if i > 0 && err == io.EOF {
				err = ErrInsufficientData
			}
			return 0, i + n, err
		}

		encodedByte := buf[0]
		value |= uint32(encodedByte&varintValueMask) << (7 * i)

		if encodedByte&varintContinueBit == 0 {
			if i > 0 && encodedByte == 0 {
				return 0, i + 1, ErrVarintOverlong
			}
			return value, i + 1, nil
		}
	}

	return 0, maxVarintBytes, ErrVarintMalformed
}

// varintSize returns the number of bytes needed to encode a variable byte integer.
// Values above the varint range report 5 so callers can detect the overflow.
func varintSize(value uint32) int {
	switch {
	case value < 128:
		return 1
	case value < 16384:
		return 2
	case value < 2097152:
		return 3
	case value <= maxVarint:
		return 4
	default:
		return 5
	}
}

func stringSize(s string) int { return 2 + len(s) }

func binarySize(b []byte) int { return 2 + len(b) }
