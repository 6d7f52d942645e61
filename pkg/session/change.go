package session

import (
	"fmt"

	"github.com/cuemby/objstore/pkg/tuple"
)

// changeKey identifies one pending record by declared type name and its
// primary-key tuple, keying both the insert and delete change-set maps
// (§4.I).
type changeKey struct {
	typeName string
	idKey    string
}

// pendingRecord pairs a change-set entry's value with the id/type it was
// filed under, so Save can re-derive the group it belongs to without a
// second call to the type's IDOf.
type pendingRecord struct {
	typeName string
	id       tuple.Tuple
	value    any
}

func keyFor(typeName string, id tuple.Tuple) (changeKey, error) {
	enc, err := tuple.Encode(id)
	if err != nil {
		return changeKey{}, fmt.Errorf("session: encoding id for change-set key: %w", err)
	}
	return changeKey{typeName: typeName, idKey: string(enc)}, nil
}
