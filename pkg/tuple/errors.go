package tuple

import "errors"

var (
	// ErrNilNotIndexable is returned when an encode call is given a nil element.
	ErrNilNotIndexable = errors.New("tuple: nil element is not indexable")

	// ErrTypeMismatch is returned when a decode caller's expected type does not
	// match the element actually encoded at that position.
	ErrTypeMismatch = errors.New("tuple: decoded element type mismatch")

	// ErrEncoding wraps a structural failure to encode an element (e.g. an
	// element of an unsupported Go type, including unsigned integers).
	ErrEncoding = errors.New("tuple: encoding error")

	// ErrDecoding wraps a structural failure to decode a byte string (e.g.
	// truncated input, unknown type code, unterminated string).
	ErrDecoding = errors.New("tuple: decoding error")
)
