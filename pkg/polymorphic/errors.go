package polymorphic

import "errors"

// ErrUnknownTypeCode is returned when decoding a shared-directory row whose
// type_code has no registered concrete type.
var ErrUnknownTypeCode = errors.New("polymorphic: unknown type code")
