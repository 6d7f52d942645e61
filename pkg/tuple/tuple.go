package tuple

// Unit is the explicit empty-value tuple element (distinct from the
// disallowed nil element).
type Unit struct{}

// Tuple is an ordered sequence of typed elements. Supported concrete element
// types: Unit, bool, any signed integer type (widened to int64 on encode),
// float64, string, []byte, uuid.UUID, time.Time, and nested Tuple.
type Tuple []any

// typeCode identifies the wire representation of an element and doubles as
// its relative sort rank: elements of different concrete types sort by code
// first, then by value.
type typeCode byte

const (
	codeNestedEnd typeCode = 0x00
	codeUnit      typeCode = 0x01
	codeFalse     typeCode = 0x02
	codeTrue      typeCode = 0x03
	codeInt       typeCode = 0x04
	codeFloat     typeCode = 0x05
	codeString    typeCode = 0x06
	codeBytes     typeCode = 0x07
	codeUUID      typeCode = 0x08
	codeInstant   typeCode = 0x09
	codeNested    typeCode = 0x0a
)

// widenInt converts any supported signed integer kind to int64, reporting
// whether the conversion succeeded (it always does for the types we accept;
// the return exists so callers of encodeElement can produce ErrEncoding for
// anything else without a type switch duplicated at every call site).
func widenInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
