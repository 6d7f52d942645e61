package query

import "errors"

// ErrDynamicFieldsRequired is returned when a query targets a type with a
// dynamic directory but supplies no partition binding (§4.J step 1).
var ErrDynamicFieldsRequired = errors.New("query: type has a dynamic directory; a partition binding is required")

// ErrUnregisteredType is returned when Query.Type names no declared type in
// the executor's registry.
var ErrUnregisteredType = errors.New("query: type is not declared in the schema registry")

// ErrUnknownIndex is returned when Query.IndexName names no declared index
// on the query's type.
var ErrUnknownIndex = errors.New("query: index is not declared on the type")

// ErrIndexNotReadable is returned when Query.IndexName names an index whose
// persisted state is not Readable; queries may only use Readable indexes.
var ErrIndexNotReadable = errors.New("query: index is not in the readable state")
