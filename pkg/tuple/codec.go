package tuple

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Encode serializes a Tuple to its order-preserving byte representation.
func Encode(t Tuple) ([]byte, error) {
	var buf []byte
	for i, el := range t {
		enc, err := encodeElement(el)
		if err != nil {
			return nil, fmt.Errorf("tuple: element %d: %w", i, err)
		}
		buf = append(buf, enc...)
	}
	return buf, nil
}

func encodeElement(el any) ([]byte, error) {
	if el == nil {
		return nil, ErrNilNotIndexable
	}
	switch v := el.(type) {
	case Unit:
		return []byte{byte(codeUnit)}, nil
	case bool:
		if v {
			return []byte{byte(codeTrue)}, nil
		}
		return []byte{byte(codeFalse)}, nil
	case string:
		return encodeBytesLike(codeString, []byte(v)), nil
	case []byte:
		return encodeBytesLike(codeBytes, v), nil
	case uuid.UUID:
		out := make([]byte, 1+16)
		out[0] = byte(codeUUID)
		copy(out[1:], v[:])
		return out, nil
	case time.Time:
		return encodeFloatLike(codeInstant, secondsSinceEpoch(v)), nil
	case float64:
		return encodeFloatLike(codeFloat, v), nil
	case float32:
		return encodeFloatLike(codeFloat, float64(v)), nil
	case Tuple:
		inner, err := Encode(v)
		if err != nil {
			return nil, err
		}
		escaped := escape(inner)
		out := make([]byte, 0, len(escaped)+2)
		out = append(out, byte(codeNested))
		out = append(out, escaped...)
		out = append(out, byte(codeNestedEnd))
		return out, nil
	default:
		if n, ok := widenInt(el); ok {
			return encodeIntLike(n), nil
		}
		return nil, fmt.Errorf("%w: unsupported type %T", ErrEncoding, el)
	}
}

func secondsSinceEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func encodeIntLike(n int64) []byte {
	out := make([]byte, 9)
	out[0] = byte(codeInt)
	u := uint64(n) ^ 0x8000000000000000
	binary.BigEndian.PutUint64(out[1:], u)
	return out
}

func encodeFloatLike(code typeCode, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&0x8000000000000000 != 0 {
		// Negative (or negative zero): invert all bits so that larger
		// magnitude negatives sort before smaller magnitude negatives.
		bits = ^bits
	} else {
		bits |= 0x8000000000000000
	}
	out := make([]byte, 9)
	out[0] = byte(code)
	binary.BigEndian.PutUint64(out[1:], bits)
	return out
}

// escape doubles every 0x00 byte as 0x00 0xFF so a lone 0x00 can serve as an
// unambiguous terminator.
func escape(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, c)
		}
	}
	return out
}

func encodeBytesLike(code typeCode, b []byte) []byte {
	escaped := escape(b)
	out := make([]byte, 0, len(escaped)+2)
	out = append(out, byte(code))
	out = append(out, escaped...)
	out = append(out, 0x00)
	return out
}

// Decode deserializes a byte string back into a Tuple, preserving each
// element's original type.
func Decode(b []byte) (Tuple, error) {
	t, rest, err := decodeSequence(b, false)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing bytes after tuple", ErrDecoding)
	}
	return t, nil
}

// decodeSequence decodes elements until the input is exhausted (nested=false)
// or a bare terminator byte is hit (nested=true), returning unconsumed input.
func decodeSequence(b []byte, nested bool) (Tuple, []byte, error) {
	var out Tuple
	for len(b) > 0 {
		code := typeCode(b[0])
		if nested && code == codeNestedEnd {
			return out, b[1:], nil
		}
		el, rest, err := decodeElement(b)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, el)
		b = rest
	}
	if nested {
		return nil, nil, fmt.Errorf("%w: unterminated nested tuple", ErrDecoding)
	}
	return out, nil, nil
}

func decodeElement(b []byte) (any, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrDecoding)
	}
	code := typeCode(b[0])
	rest := b[1:]
	switch code {
	case codeUnit:
		return Unit{}, rest, nil
	case codeFalse:
		return false, rest, nil
	case codeTrue:
		return true, rest, nil
	case codeInt:
		if len(rest) < 8 {
			return nil, nil, fmt.Errorf("%w: truncated int", ErrDecoding)
		}
		u := binary.BigEndian.Uint64(rest[:8])
		n := int64(u ^ 0x8000000000000000)
		return n, rest[8:], nil
	case codeFloat, codeInstant:
		if len(rest) < 8 {
			return nil, nil, fmt.Errorf("%w: truncated float", ErrDecoding)
		}
		bits := binary.BigEndian.Uint64(rest[:8])
		if bits&0x8000000000000000 != 0 {
			bits &^= 0x8000000000000000
		} else {
			bits = ^bits
		}
		f := math.Float64frombits(bits)
		if code == codeInstant {
			return time.Unix(0, int64(f*1e9)).UTC(), rest[8:], nil
		}
		return f, rest[8:], nil
	case codeString:
		raw, tail, err := unescapeUntilTerminator(rest)
		if err != nil {
			return nil, nil, err
		}
		return string(raw), tail, nil
	case codeBytes:
		raw, tail, err := unescapeUntilTerminator(rest)
		if err != nil {
			return nil, nil, err
		}
		return raw, tail, nil
	case codeUUID:
		if len(rest) < 16 {
			return nil, nil, fmt.Errorf("%w: truncated uuid", ErrDecoding)
		}
		var u uuid.UUID
		copy(u[:], rest[:16])
		return u, rest[16:], nil
	case codeNested:
		raw, tail, err := unescapeUntilTerminator(rest)
		if err != nil {
			return nil, nil, err
		}
		inner, err := Decode(raw)
		if err != nil {
			return nil, nil, err
		}
		return inner, tail, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown type code 0x%02x", ErrDecoding, byte(code))
	}
}

// unescapeUntilTerminator reads an escaped byte string up to (and consuming)
// its lone-0x00 terminator.
func unescapeUntilTerminator(b []byte) ([]byte, []byte, error) {
	var out []byte
	for i := 0; i < len(b); i++ {
		if b[i] == 0x00 {
			if i+1 < len(b) && b[i+1] == 0xFF {
				out = append(out, 0x00)
				i++
				continue
			}
			return out, b[i+1:], nil
		}
		out = append(out, b[i])
	}
	return nil, nil, fmt.Errorf("%w: unterminated string/bytes element", ErrDecoding)
}

// Range returns the half-open byte range [begin, end) covering every encoded
// tuple whose leading elements equal prefix exactly. end is computed by
// incrementing the last byte of prefix that isn't 0xFF and truncating
// everything after it (the "strinc" trick); a naive prefix+0xFF suffix would
// wrongly exclude keys like prefix+0xFF+0x00, which still start with prefix.
// If prefix consists entirely of 0xFF bytes there is no finite upper bound
// and end is nil (meaning: scan to the end of the keyspace).
func Range(prefix []byte) (begin, end []byte) {
	begin = append([]byte(nil), prefix...)
	end = strinc(prefix)
	return begin, end
}

func strinc(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

// DecodeTyped decodes a single-element tuple and asserts its Go type,
// returning ErrTypeMismatch if the decoded element isn't a T. A decoded
// element of a different but related type is coerced when the conversion is
// exact: int64<->float64 only when the round trip is lossless, and
// int64->bool via a nonzero test.
func DecodeTyped[T any](b []byte) (T, error) {
	var zero T
	elems, err := Decode(b)
	if err != nil {
		return zero, err
	}
	if len(elems) != 1 {
		return zero, fmt.Errorf("%w: expected exactly one element, got %d", ErrTypeMismatch, len(elems))
	}
	if v, ok := elems[0].(T); ok {
		return v, nil
	}
	if v, ok := coerceTyped[T](elems[0]); ok {
		return v, nil
	}
	return zero, fmt.Errorf("%w: expected %T, got %T", ErrTypeMismatch, zero, elems[0])
}

// coerceTyped applies the exact-only numeric coercions DecodeTyped permits
// when the decoded element isn't already a T.
func coerceTyped[T any](el any) (T, bool) {
	var zero T
	switch v := el.(type) {
	case int64:
		if f := float64(v); int64(f) == v {
			if conv, ok := any(f).(T); ok {
				return conv, true
			}
		}
		if conv, ok := any(v != 0).(T); ok {
			return conv, true
		}
	case float64:
		if n := int64(v); v == math.Trunc(v) && float64(n) == v {
			if conv, ok := any(n).(T); ok {
				return conv, true
			}
		}
	}
	return zero, false
}
