package directory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/txn"
)

// memStore is a minimal in-memory kv.Store sufficient to exercise the
// resolver's allocate/cache path without bringing in bbolt.
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
func (t *memTx) Set(key, value []byte)                                { t.writes[string(key)] = value }
func (t *memTx) Clear(key []byte)                                     { t.writes[string(key)] = nil }
func (t *memTx) ClearRange(begin, end []byte)                         {}
func (t *memTx) AtomicOp(key []byte, param []byte, op kv.MutationType) {}
func (t *memTx) SetOption(option string, value []byte) error          { return nil }
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

func newTestResolver(t *testing.T) (*Resolver, *memStore) {
	t.Helper()
	store := newMemStore()
	driver := txn.NewDriver(store, txn.DefaultConfig())
	r, err := NewResolver(driver, 16)
	require.NoError(t, err)
	return r, store
}

func TestResolveStaticPathIsStable(t *testing.T) {
	r, _ := newTestResolver(t)
	path := Path{Lit("orders")}

	p1, err := r.Resolve(context.Background(), path, nil)
	require.NoError(t, err)
	p2, err := r.Resolve(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestResolveDistinctPathsGetDistinctPrefixes(t *testing.T) {
	r, _ := newTestResolver(t)

	p1, err := r.Resolve(context.Background(), Path{Lit("orders")}, nil)
	require.NoError(t, err)
	p2, err := r.Resolve(context.Background(), Path{Lit("customers")}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
}

func TestResolveDynamicFieldRequiresBinding(t *testing.T) {
	r, _ := newTestResolver(t)
	path := Path{Lit("orders"), Field("tenant")}

	_, err := r.Resolve(context.Background(), path, nil)
	assert.ErrorIs(t, err, ErrDynamicFieldsRequired)
}

func TestResolveDynamicFieldWithBinding(t *testing.T) {
	r, _ := newTestResolver(t)
	path := Path{Lit("orders"), Field("tenant")}

	a, err := r.Resolve(context.Background(), path, NewBinding().Bind("tenant", "acme"))
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), path, NewBinding().Bind("tenant", "other"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	again, err := r.Resolve(context.Background(), path, NewBinding().Bind("tenant", "acme"))
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestResolveCachesAcrossAllocations(t *testing.T) {
	r, store := newTestResolver(t)
	path := Path{Lit("orders")}

	_, err := r.Resolve(context.Background(), path, nil)
	require.NoError(t, err)

	before := len(store.data)
	_, err = r.Resolve(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, before, len(store.data), "second resolve should be served from cache, not allocate again")
}

func TestValidatePolymorphicRejectsDynamicSegment(t *testing.T) {
	err := ValidatePolymorphic(Path{Lit("events"), Field("tenant")})
	assert.ErrorIs(t, err, ErrPolymorphicDynamicSegment)
}

func TestValidatePolymorphicAcceptsStaticPath(t *testing.T) {
	err := ValidatePolymorphic(Path{Lit("events"), Lit("v1")})
	assert.NoError(t, err)
}
