/*
Package tuple implements the order-preserving structured key encoding that
every subspace, index entry, and primary key in objstore is built from. It is
a from-scratch Go re-implementation of the FoundationDB tuple layer: encoding
a sequence of typed elements produces a byte string whose lexicographic order
matches the element-wise order of the input, for every supported element
kind.

# Supported elements

	Unit            an explicit empty marker (tuple.Unit{})
	bool
	int64-widenable signed integers (int, int8, int16, int32, int64)
	float64 (IEEE-754 double)
	string (UTF-8)
	[]byte
	uuid.UUID
	time.Time (encoded as a double: seconds since the Unix epoch)
	Tuple (nested)

nil cannot be encoded: every encode path rejects it with ErrNilNotIndexable,
since the sparse-index semantics (§4.F) treat "no value" as "no index entry"
rather than "an indexed null".

# Ordering

Integers are stored as a big-endian uint64 with the sign bit flipped, so two's
complement ordering becomes unsigned lexicographic ordering. Doubles use a
sign-magnitude-to-bit-pattern transform: positive numbers get their sign bit
set, negative numbers are bitwise-inverted, which yields a representation
whose unsigned byte order matches IEEE-754 total order. Strings and byte
strings are length-unbounded, so a raw 0x00 byte inside them is escaped as
0x00 0xFF and the field is terminated by a lone 0x00; nested tuples use the
same lone-0x00 terminator, which is unambiguous because every internal 0x00
byte is always immediately followed by 0xFF.
*/
package tuple
