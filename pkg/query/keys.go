package query

import (
	"fmt"

	"github.com/cuemby/objstore/pkg/tuple"
)

// itemKey and itemSubspace mirror pkg/session's private helpers: both
// packages independently own the slice of the §3 key-space they read or
// write (S/i/<type-name>/<id-tuple>), the way pkg/index and pkg/polymorphic
// each own their own key-building for the same overall layout.
func itemKey(typePrefix []byte, typeName string, id tuple.Tuple) ([]byte, error) {
	head, err := tuple.Encode(tuple.Tuple{"i", typeName})
	if err != nil {
		return nil, fmt.Errorf("query: encoding item key head: %w", err)
	}
	idBytes, err := tuple.Encode(id)
	if err != nil {
		return nil, fmt.Errorf("query: encoding id: %w", err)
	}
	return append(append(append([]byte{}, typePrefix...), head...), idBytes...), nil
}

func itemSubspace(typePrefix []byte, typeName string) ([]byte, error) {
	head, err := tuple.Encode(tuple.Tuple{"i", typeName})
	if err != nil {
		return nil, fmt.Errorf("query: encoding item subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), head...), nil
}

func indexSubspace(typePrefix []byte, indexName string) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"x", indexName})
	if err != nil {
		return nil, fmt.Errorf("query: encoding index subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), enc...), nil
}

func blobSubspace(typePrefix []byte) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"b"})
	if err != nil {
		return nil, fmt.Errorf("query: encoding blob subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), enc...), nil
}
