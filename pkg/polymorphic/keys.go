package polymorphic

import (
	"bytes"
	"fmt"

	"github.com/cuemby/objstore/pkg/tuple"
)

// itemKey builds the shared-directory key P/i/<type_code>/<id-tuple> under
// protocolPrefix.
func itemKey(protocolPrefix []byte, typeCode int, id tuple.Tuple) ([]byte, error) {
	head, err := tuple.Encode(tuple.Tuple{"i", int64(typeCode)})
	if err != nil {
		return nil, fmt.Errorf("polymorphic: encoding item key head: %w", err)
	}
	idBytes, err := tuple.Encode(id)
	if err != nil {
		return nil, fmt.Errorf("polymorphic: encoding id: %w", err)
	}
	return append(append(append([]byte{}, protocolPrefix...), head...), idBytes...), nil
}

// itemSubspace returns the P/i/ prefix shared by every row in
// protocolPrefix's directory, used to range-scan for FetchAll.
func itemSubspace(protocolPrefix []byte) ([]byte, error) {
	head, err := tuple.Encode(tuple.Tuple{"i"})
	if err != nil {
		return nil, fmt.Errorf("polymorphic: encoding item subspace: %w", err)
	}
	return append(append([]byte{}, protocolPrefix...), head...), nil
}

// sharesDirectory reports whether a concrete type's own resolved prefix is
// the same as the protocol's: if so, there is exactly one copy of the
// record and no mirroring is needed.
func sharesDirectory(ownPrefix, protocolPrefix []byte) bool {
	return bytes.Equal(ownPrefix, protocolPrefix)
}
