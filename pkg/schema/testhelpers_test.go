package schema

import (
	"context"
	"sync"

	"github.com/cuemby/objstore/pkg/kv"
)

// memStore is a minimal in-memory kv.Store, reused by version_test.go and
// reconcile_test.go to exercise schema persistence without bringing in
// bbolt.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) NewTransaction(ctx context.Context, opts kv.TransactionOptions) (kv.Transaction, error) {
	return &memTx{store: s, writes: map[string][]byte{}}, nil
}

func (s *memStore) Close() error { return nil }

type memTx struct {
	store  *memStore
	writes map[string][]byte
}

func (t *memTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if v, ok := t.writes[string(key)]; ok {
		return v, nil
	}
	return t.store.data[string(key)], nil
}

func (t *memTx) GetRange(ctx context.Context, begin, end []byte, limit int, snapshot bool, mode kv.StreamingMode) (kv.Iterator, error) {
	return nil, nil
}
func (t *memTx) Set(key, value []byte)                                 { t.writes[string(key)] = value }
func (t *memTx) Clear(key []byte)                                      { t.writes[string(key)] = nil }
func (t *memTx) ClearRange(begin, end []byte)                          {}
func (t *memTx) AtomicOp(key []byte, param []byte, op kv.MutationType) {}
func (t *memTx) SetOption(option string, value []byte) error           { return nil }
func (t *memTx) GetApproximateSize(ctx context.Context) (int64, error) { return 0, nil }

func (t *memTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for k, v := range t.writes {
		if v == nil {
			delete(t.store.data, k)
		} else {
			t.store.data[k] = v
		}
	}
	return nil
}

func (t *memTx) GetReadVersion(ctx context.Context) (int64, error) { return 0, nil }
func (t *memTx) SetReadVersion(v int64)                            {}
