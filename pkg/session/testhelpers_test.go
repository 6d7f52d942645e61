package session

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/cuemby/objstore/pkg/kv"
)

// memStore is a minimal in-memory kv.Store with a real sorted-range
// GetRange, shared committed state across transactions, and read-your-own-
// writes isolation within one transaction — enough to exercise session.Save
// and the query executor without bbolt.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) NewTransaction(ctx context.Context, opts kv.TransactionOptions) (kv.Transaction, error) {
	return &memTx{store: s, writes: map[string][]byte{}, cleared: map[string]bool{}}, nil
}

func (s *memStore) Close() error { return nil }

type memTx struct {
	store   *memStore
	writes  map[string][]byte
	cleared map[string]bool
}

func (t *memTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	k := string(key)
	if t.cleared[k] {
		return nil, nil
	}
	if v, ok := t.writes[k]; ok {
		return v, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.data[k], nil
}

func (t *memTx) GetRange(ctx context.Context, begin, end []byte, limit int, snapshot bool, mode kv.StreamingMode) (kv.Iterator, error) {
	merged := map[string][]byte{}
	t.store.mu.Lock()
	for k, v := range t.store.data {
		merged[k] = v
	}
	t.store.mu.Unlock()
	for k, v := range t.writes {
		merged[k] = v
	}
	for k := range t.cleared {
		delete(merged, k)
	}

	var keys []string
	for k := range merged {
		if bytes.Compare([]byte(k), begin) >= 0 && (end == nil || bytes.Compare([]byte(k), end) < 0) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	items := make([]kv.KeyValue, len(keys))
	for i, k := range keys {
		items[i] = kv.KeyValue{Key: []byte(k), Value: merged[k]}
	}
	return &sliceIterator{items: items}, nil
}

func (t *memTx) Set(key, value []byte) {
	k := string(key)
	delete(t.cleared, k)
	t.writes[k] = append([]byte(nil), value...)
}

func (t *memTx) Clear(key []byte) {
	k := string(key)
	delete(t.writes, k)
	t.cleared[k] = true
}

func (t *memTx) ClearRange(begin, end []byte) {}
func (t *memTx) AtomicOp(key []byte, param []byte, op kv.MutationType) {}
func (t *memTx) SetOption(option string, value []byte) error           { return nil }
func (t *memTx) GetApproximateSize(ctx context.Context) (int64, error) { return 0, nil }

func (t *memTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for k := range t.cleared {
		delete(t.store.data, k)
	}
	for k, v := range t.writes {
		t.store.data[k] = v
	}
	return nil
}

func (t *memTx) GetReadVersion(ctx context.Context) (int64, error) { return 0, nil }
func (t *memTx) SetReadVersion(v int64)                            {}

type sliceIterator struct {
	items []kv.KeyValue
	pos   int
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}
func (it *sliceIterator) Item() kv.KeyValue { return it.items[it.pos-1] }
func (it *sliceIterator) Err() error        { return nil }
