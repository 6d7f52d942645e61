package hnsw

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/kv"
)

// vectorCache memoizes per-label vector fetches for the duration of one
// insert or search call, so pruning neighbor lists doesn't re-fetch the
// same vector repeatedly (§4.H Vector cache).
type vectorCache struct {
	ctx   context.Context
	tx    kv.Transaction
	idx   *Index
	cache map[int64][]float64
}

func newVectorCache(ctx context.Context, tx kv.Transaction, idx *Index) *vectorCache {
	return &vectorCache{ctx: ctx, tx: tx, idx: idx, cache: make(map[int64][]float64)}
}

func (c *vectorCache) get(label int64) ([]float64, error) {
	if v, ok := c.cache[label]; ok {
		return v, nil
	}
	key, err := c.idx.vectorKey(label)
	if err != nil {
		return nil, err
	}
	raw, err := c.tx.Get(c.ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("hnsw: missing vector for label %d", label)
	}
	vec, ok := decodeVector(raw)
	if !ok {
		return nil, fmt.Errorf("hnsw: corrupt vector for label %d", label)
	}
	c.cache[label] = vec
	return vec, nil
}

func (c *vectorCache) put(label int64, vec []float64) {
	c.cache[label] = vec
}
