package hnsw

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/tuple"
)

// Single-byte suffixes appended to an index's subspace prefix to partition
// its storage layout (§3, §4.H): the serialized graph topology, the vector
// for each label, the label allocation counter, the node-count counter, and
// the two directions of the label<->id mapping.
const (
	graphSuffix     = byte(0x01)
	vectorSuffix    = byte(0x02)
	nextLabelSuffix = byte(0x03)
	nodeCountSuffix = byte(0x04)
	idSuffix        = byte(0x05)
	labelSuffix     = byte(0x06)
)

func (idx *Index) subKey(suffix byte) []byte {
	return append(append([]byte{}, idx.subspace...), suffix)
}

func (idx *Index) graphKey() []byte {
	return idx.subKey(graphSuffix)
}

// vectorKey addresses the stored vector for label.
func (idx *Index) vectorKey(label int64) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{label})
	if err != nil {
		return nil, fmt.Errorf("hnsw: encoding vector key: %w", err)
	}
	return append(idx.subKey(vectorSuffix), enc...), nil
}

// idKey addresses the caller id stored for label (label -> id direction).
func (idx *Index) idKey(label int64) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{label})
	if err != nil {
		return nil, fmt.Errorf("hnsw: encoding id key: %w", err)
	}
	return append(idx.subKey(idSuffix), enc...), nil
}

// labelKey addresses the label stored for id (id -> label direction).
func (idx *Index) labelKey(id tuple.Tuple) ([]byte, error) {
	enc, err := tuple.Encode(id)
	if err != nil {
		return nil, fmt.Errorf("hnsw: encoding label key: %w", err)
	}
	return append(idx.subKey(labelSuffix), enc...), nil
}

func (idx *Index) loadGraph(ctx context.Context, tx kv.Transaction) (*graphState, error) {
	raw, err := tx.Get(ctx, idx.graphKey())
	if err != nil {
		return nil, err
	}
	return decodeGraph(raw)
}

func (idx *Index) saveGraph(tx kv.Transaction, g *graphState) error {
	enc, err := g.encode()
	if err != nil {
		return fmt.Errorf("hnsw: encoding graph: %w", err)
	}
	tx.Set(idx.graphKey(), enc)
	return nil
}

// allocateLabel assigns the next monotonic int64 label for a new node,
// mirroring the directory layer's counter idiom (pkg/directory resolver.go).
func (idx *Index) allocateLabel(ctx context.Context, tx kv.Transaction) (int64, error) {
	key := idx.subKey(nextLabelSuffix)
	raw, err := tx.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	var current int64
	if raw != nil {
		current, err = tuple.DecodeTyped[int64](raw)
		if err != nil {
			return 0, fmt.Errorf("hnsw: decoding label counter: %w", err)
		}
	}
	next := current + 1
	enc, err := tuple.Encode(tuple.Tuple{next})
	if err != nil {
		return 0, fmt.Errorf("hnsw: encoding label counter: %w", err)
	}
	tx.Set(key, enc)
	return next, nil
}

// readCounter reads the little-endian int64 counter that incrementCounter
// maintains under suffix, defaulting to zero when absent.
func (idx *Index) readCounter(ctx context.Context, tx kv.Transaction, suffix byte) (int64, error) {
	raw, err := tx.Get(ctx, idx.subKey(suffix))
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, nil
	}
	var u uint64
	for i := 0; i < len(raw) && i < 8; i++ {
		u |= uint64(raw[i]) << (8 * i)
	}
	return int64(u), nil
}

// incrementCounter adjusts the counter at suffix by delta through a
// kv.AtomicOp MutationAdd; a negative delta is encoded in two's complement,
// so the wrapping unsigned add subtracts it.
func (idx *Index) incrementCounter(tx kv.Transaction, suffix byte, delta int64) {
	key := idx.subKey(suffix)
	tx.AtomicOp(key, encodeLittleEndianDelta(delta), kv.MutationAdd)
}

func encodeLittleEndianDelta(delta int64) []byte {
	u := uint64(delta)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> (8 * i))
	}
	return buf
}

func encodeVector(vec []float64) ([]byte, error) {
	elements := make(tuple.Tuple, len(vec))
	for i, v := range vec {
		elements[i] = v
	}
	return tuple.Encode(elements)
}

func decodeVector(raw []byte) ([]float64, bool) {
	elements, err := tuple.Decode(raw)
	if err != nil {
		return nil, false
	}
	vec := make([]float64, len(elements))
	for i, el := range elements {
		f, ok := el.(float64)
		if !ok {
			return nil, false
		}
		vec[i] = f
	}
	return vec, true
}

// storeVectorAndMapping persists label's vector and both directions of the
// label<->id mapping.
func (idx *Index) storeVectorAndMapping(tx kv.Transaction, id tuple.Tuple, label int64, vec []float64) error {
	vecKey, err := idx.vectorKey(label)
	if err != nil {
		return err
	}
	encVec, err := encodeVector(vec)
	if err != nil {
		return fmt.Errorf("hnsw: encoding vector: %w", err)
	}
	tx.Set(vecKey, encVec)

	idKeyBytes, err := idx.idKey(label)
	if err != nil {
		return err
	}
	encID, err := tuple.Encode(id)
	if err != nil {
		return fmt.Errorf("hnsw: encoding id: %w", err)
	}
	tx.Set(idKeyBytes, encID)

	labelKeyBytes, err := idx.labelKey(id)
	if err != nil {
		return err
	}
	encLabel, err := tuple.Encode(tuple.Tuple{label})
	if err != nil {
		return fmt.Errorf("hnsw: encoding label: %w", err)
	}
	tx.Set(labelKeyBytes, encLabel)
	return nil
}
