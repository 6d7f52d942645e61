package session

import (
	"fmt"

	"github.com/cuemby/objstore/pkg/tuple"
)

// itemKey builds S/i/<type-name>/<id-tuple> under typePrefix (§3).
func itemKey(typePrefix []byte, typeName string, id tuple.Tuple) ([]byte, error) {
	head, err := tuple.Encode(tuple.Tuple{"i", typeName})
	if err != nil {
		return nil, fmt.Errorf("session: encoding item key head: %w", err)
	}
	idBytes, err := tuple.Encode(id)
	if err != nil {
		return nil, fmt.Errorf("session: encoding id: %w", err)
	}
	return append(append(append([]byte{}, typePrefix...), head...), idBytes...), nil
}

// itemSubspace returns S/i/<type-name>/, the range holding one type's
// records.
func itemSubspace(typePrefix []byte, typeName string) ([]byte, error) {
	head, err := tuple.Encode(tuple.Tuple{"i", typeName})
	if err != nil {
		return nil, fmt.Errorf("session: encoding item subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), head...), nil
}

// indexSubspace returns S/x/<index-name>/, the subspace an index.Maintainer
// for indexName is rooted at.
func indexSubspace(typePrefix []byte, indexName string) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"x", indexName})
	if err != nil {
		return nil, fmt.Errorf("session: encoding index subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), enc...), nil
}

// blobSubspace returns S/b/, the subspace recordcodec chunks an
// externalized payload into.
func blobSubspace(typePrefix []byte) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"b"})
	if err != nil {
		return nil, fmt.Errorf("session: encoding blob subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), enc...), nil
}
