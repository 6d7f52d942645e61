package polymorphic

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/recordcodec"
	"github.com/cuemby/objstore/pkg/tuple"
)

// TypeBinding supplies what FetchAll/FetchByID need to decode a shared-
// directory row for one conforming concrete type: its own blob subspace
// (external-blob chunks back the concrete type's own S/b/ prefix, never the
// protocol's — the mirrored item-slot value is a byte-identical copy, but
// blob chunks are written once, against the owning type's storage) and a
// factory for a fresh decode target.
type TypeBinding struct {
	BlobSubspace []byte
	NewInstance  func() any
}

// FetchByID searches the shared directory across every known type_code (a
// handful of point lookups, not a range scan) and returns the first match
// along with the type_code it was found under.
func FetchByID(ctx context.Context, tx kv.Transaction, protocolPrefix []byte, bindings map[int]TypeBinding, id tuple.Tuple) (any, int, error) {
	for typeCode, binding := range bindings {
		key, err := itemKey(protocolPrefix, typeCode, id)
		if err != nil {
			return nil, 0, err
		}
		itemValue, err := tx.Get(ctx, key)
		if err != nil {
			return nil, 0, err
		}
		if itemValue == nil {
			continue
		}
		raw, err := recordcodec.Load(ctx, tx, binding.BlobSubspace, itemValue)
		if err != nil {
			return nil, 0, err
		}
		record, err := recordcodec.DeserializeAny(raw, binding.NewInstance)
		if err != nil {
			return nil, 0, err
		}
		return record, typeCode, nil
	}
	return nil, 0, nil
}

// FetchAll range-scans protocolPrefix's shared directory and groups the
// decoded records by type_code.
func FetchAll(ctx context.Context, tx kv.Transaction, protocolPrefix []byte, bindings map[int]TypeBinding) (map[int][]any, error) {
	subspace, err := itemSubspace(protocolPrefix)
	if err != nil {
		return nil, err
	}
	begin, end := tuple.Range(subspace)
	it, err := tx.GetRange(ctx, begin, end, 0, true, kv.StreamingModeIterator)
	if err != nil {
		return nil, err
	}

	out := make(map[int][]any)
	for it.Next() {
		item := it.Item()
		if len(item.Key) <= len(subspace) {
			continue
		}
		elements, err := tuple.Decode(item.Key[len(subspace):])
		if err != nil || len(elements) < 1 {
			continue
		}
		typeCode64, ok := elements[0].(int64)
		if !ok {
			continue
		}
		typeCode := int(typeCode64)

		binding, ok := bindings[typeCode]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownTypeCode, typeCode)
		}
		raw, err := recordcodec.Load(ctx, tx, binding.BlobSubspace, item.Value)
		if err != nil {
			return nil, err
		}
		record, err := recordcodec.DeserializeAny(raw, binding.NewInstance)
		if err != nil {
			return nil, err
		}
		out[typeCode] = append(out[typeCode], record)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
