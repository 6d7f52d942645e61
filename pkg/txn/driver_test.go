package txn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/readversion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory kv.Store used to exercise the driver's
// retry/timeout/cache-seeding behavior without bringing in bbolt.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	version int64

	failNextN int // number of upcoming transactions whose Commit fails with ErrNotCommitted
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (s *fakeStore) NewTransaction(ctx context.Context, opts kv.TransactionOptions) (kv.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv := s.version
	if opts.ReadVersion != nil {
		rv = *opts.ReadVersion
	}
	return &fakeTx{store: s, readVersion: rv, writable: opts.Writable, writes: map[string][]byte{}}, nil
}

func (s *fakeStore) Close() error { return nil }

type fakeTx struct {
	store       *fakeStore
	readVersion int64
	writable    bool
	writes      map[string][]byte
	committed   bool
}

func (t *fakeTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.data[string(key)], nil
}

func (t *fakeTx) GetRange(ctx context.Context, begin, end []byte, limit int, snapshot bool, mode kv.StreamingMode) (kv.Iterator, error) {
	return nil, nil
}

func (t *fakeTx) Set(key, value []byte) { t.writes[string(key)] = value }
func (t *fakeTx) Clear(key []byte)      { t.writes[string(key)] = nil }
func (t *fakeTx) ClearRange(begin, end []byte) {}
func (t *fakeTx) AtomicOp(key []byte, param []byte, op kv.MutationType) {}
func (t *fakeTx) SetOption(option string, value []byte) error { return nil }
func (t *fakeTx) GetApproximateSize(ctx context.Context) (int64, error) { return 0, nil }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.failNextN > 0 {
		t.store.failNextN--
		return kv.ErrNotCommitted
	}
	for k, v := range t.writes {
		if v == nil {
			delete(t.store.data, k)
		} else {
			t.store.data[k] = v
		}
	}
	t.store.version++
	t.committed = true
	return nil
}

func (t *fakeTx) GetReadVersion(ctx context.Context) (int64, error) { return t.readVersion, nil }
func (t *fakeTx) SetReadVersion(v int64)                            { t.readVersion = v }

func TestDriverCommitsOnSuccess(t *testing.T) {
	store := newFakeStore()
	d := NewDriver(store, DefaultConfig())

	err := d.Run(context.Background(), nil, Options{Writable: true}, func(ctx context.Context, tx kv.Transaction) error {
		tx.Set([]byte("k"), []byte("v"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), store.data["k"])
}

func TestDriverRetriesOnConflict(t *testing.T) {
	store := newFakeStore()
	store.failNextN = 2
	d := NewDriver(store, Config{RetryLimit: 5, InitialDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond, DefaultTimeout: time.Second})

	calls := 0
	err := d.Run(context.Background(), nil, Options{Writable: true}, func(ctx context.Context, tx kv.Transaction) error {
		calls++
		tx.Set([]byte("k"), []byte("v"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDriverGivesUpAfterRetryLimit(t *testing.T) {
	store := newFakeStore()
	store.failNextN = 100
	d := NewDriver(store, Config{RetryLimit: 2, InitialDelay: time.Millisecond, MaxRetryDelay: 2 * time.Millisecond, DefaultTimeout: time.Second})

	err := d.Run(context.Background(), nil, Options{Writable: true}, func(ctx context.Context, tx kv.Transaction) error {
		return nil
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestDriverDoesNotRetryValidationErrors(t *testing.T) {
	store := newFakeStore()
	d := NewDriver(store, DefaultConfig())

	sentinel := assert.AnError
	calls := 0
	err := d.Run(context.Background(), nil, Options{Writable: true}, func(ctx context.Context, tx kv.Transaction) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDriverSeedsReadVersionFromCache(t *testing.T) {
	store := newFakeStore()
	store.version = 99
	cache := &readversion.Cache{}
	cache.Update(42)

	d := NewDriver(store, DefaultConfig())
	var seen int64
	err := d.Run(context.Background(), cache, Options{CachePolicy: readversion.Cached()}, func(ctx context.Context, tx kv.Transaction) error {
		v, err := tx.GetReadVersion(ctx)
		require.NoError(t, err)
		seen = v
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, seen)
}

func TestDriverTracksCommitVersionOnSuccess(t *testing.T) {
	store := newFakeStore()
	cache := &readversion.Cache{}

	d := NewDriver(store, DefaultConfig())
	err := d.Run(context.Background(), cache, Options{Writable: true, TrackOnCommit: true}, func(ctx context.Context, tx kv.Transaction) error {
		tx.Set([]byte("k"), []byte("v"))
		return nil
	})
	require.NoError(t, err)
	_, _, ok := cache.Info()
	assert.True(t, ok)
}
