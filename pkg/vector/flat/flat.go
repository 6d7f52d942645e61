package flat

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/obs/metrics"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/vector"
)

// Index is a flat vector index rooted at an already-resolved subspace
// prefix, storing one fixed-dimension vector per id.
type Index struct {
	subspace []byte
	metric   vector.Metric
	dim      int
}

// NewIndex builds a flat Index over subspace with the given distance metric
// and vector dimension.
func NewIndex(subspace []byte, metric vector.Metric, dim int) *Index {
	return &Index{subspace: append([]byte(nil), subspace...), metric: metric, dim: dim}
}

// Update stores vec at id's key, clearing the old entry first. A nil vec
// clears the entry (sparse skip): no row is stored for it.
func (idx *Index) Update(ctx context.Context, tx kv.Transaction, id tuple.Tuple, vec []float64) error {
	key, err := idx.key(id)
	if err != nil {
		return err
	}
	if vec == nil {
		tx.Clear(key)
		return nil
	}
	if len(vec) != idx.dim {
		return fmt.Errorf("vector/flat: vector has %d dims, index wants %d", len(vec), idx.dim)
	}
	elements := make(tuple.Tuple, len(vec))
	for i, v := range vec {
		elements[i] = v
	}
	encoded, err := tuple.Encode(elements)
	if err != nil {
		return fmt.Errorf("vector/flat: encoding vector: %w", err)
	}
	tx.Clear(key)
	tx.Set(key, encoded)
	return nil
}

// Search range-scans the subspace with a snapshot read, computing distance
// against each stored vector and keeping the k closest ids in a bounded
// max-heap, returned in ascending-distance order. Rows that fail to decode
// are skipped rather than failing the search.
func (idx *Index) Search(ctx context.Context, tx kv.Transaction, query []float64, k int) ([]tuple.Tuple, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FlatSearchDuration)

	if k <= 0 {
		return nil, nil
	}
	begin, end := tuple.Range(idx.subspace)
	it, err := tx.GetRange(ctx, begin, end, 0, true, kv.StreamingModeIterator)
	if err != nil {
		return nil, err
	}

	h := &maxHeap{}
	for it.Next() {
		item := it.Item()
		if len(item.Key) <= len(idx.subspace) {
			continue
		}
		id, err := tuple.Decode(item.Key[len(idx.subspace):])
		if err != nil {
			continue
		}
		vec, ok := decodeVector(item.Value)
		if !ok {
			continue
		}

		d := vector.Distance(idx.metric, query, vec)
		if h.Len() < k {
			heap.Push(h, candidate{id: id, distance: d})
		} else if d < (*h)[0].distance {
			heap.Pop(h)
			heap.Push(h, candidate{id: id, distance: d})
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	results := make([]tuple.Tuple, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(candidate).id
	}
	return results, nil
}

// Count range-scans the subspace tallying stored vectors, for
// administrative introspection (the admin CLI's `vector stats`).
func (idx *Index) Count(ctx context.Context, tx kv.Transaction) (int, error) {
	begin, end := tuple.Range(idx.subspace)
	it, err := tx.GetRange(ctx, begin, end, 0, true, kv.StreamingModeIterator)
	if err != nil {
		return 0, err
	}
	n := 0
	for it.Next() {
		n++
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

func (idx *Index) key(id tuple.Tuple) ([]byte, error) {
	idBytes, err := tuple.Encode(id)
	if err != nil {
		return nil, fmt.Errorf("vector/flat: encoding id: %w", err)
	}
	return append(append([]byte{}, idx.subspace...), idBytes...), nil
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

type candidate struct {
	id       tuple.Tuple
	distance float64
}

// maxHeap keeps the k smallest distances seen so far, evicting the largest
// when a closer candidate arrives.
type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].distance > h[j].distance }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)         { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
