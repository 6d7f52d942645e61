package polymorphic

import (
	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/tuple"
)

// DualWrite mirrors itemValue (the already-built item-slot payload — never
// re-encoded) to the protocol's shared directory under typeCode, when
// ownPrefix differs from protocolPrefix. A no-op when the type's own
// directory is the protocol's directory: there is only one copy to write.
func DualWrite(tx kv.Transaction, ownPrefix, protocolPrefix []byte, typeCode int, id tuple.Tuple, itemValue []byte) error {
	if sharesDirectory(ownPrefix, protocolPrefix) {
		return nil
	}
	key, err := itemKey(protocolPrefix, typeCode, id)
	if err != nil {
		return err
	}
	tx.Set(key, itemValue)
	return nil
}

// DualClear clears the mirrored entry for id at the protocol's shared
// directory, the counterpart to DualWrite on delete.
func DualClear(tx kv.Transaction, ownPrefix, protocolPrefix []byte, typeCode int, id tuple.Tuple) error {
	if sharesDirectory(ownPrefix, protocolPrefix) {
		return nil
	}
	key, err := itemKey(protocolPrefix, typeCode, id)
	if err != nil {
		return err
	}
	tx.Clear(key)
	return nil
}
