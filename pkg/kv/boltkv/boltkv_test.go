package boltkv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetCommit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.NewTransaction(ctx, kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	tx.Set([]byte("a"), []byte("1"))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := s.NewTransaction(ctx, kv.TransactionOptions{})
	require.NoError(t, err)
	v, err := tx2.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	require.NoError(t, tx2.Commit(ctx))
}

func TestReadVersionIncreasesOnWrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ro, err := s.NewTransaction(ctx, kv.TransactionOptions{})
	require.NoError(t, err)
	v0, err := ro.GetReadVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, ro.Commit(ctx))

	tx, err := s.NewTransaction(ctx, kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	tx.Set([]byte("k"), []byte("v"))
	require.NoError(t, tx.Commit(ctx))

	ro2, err := s.NewTransaction(ctx, kv.TransactionOptions{})
	require.NoError(t, err)
	v1, err := ro2.GetReadVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, ro2.Commit(ctx))

	require.Greater(t, v1, v0)
}

func TestGetRangeAndClearRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.NewTransaction(ctx, kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	for _, k := range []string{"p/1", "p/2", "p/3", "q/1"} {
		tx.Set([]byte(k), []byte("v"))
	}
	require.NoError(t, tx.Commit(ctx))

	tx2, err := s.NewTransaction(ctx, kv.TransactionOptions{})
	require.NoError(t, err)
	it, err := tx2.GetRange(ctx, []byte("p/"), []byte("p0"), 0, false, kv.StreamingModeIterator)
	require.NoError(t, err)
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Item().Key))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"p/1", "p/2", "p/3"}, keys)
	require.NoError(t, tx2.Commit(ctx))

	tx3, err := s.NewTransaction(ctx, kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	tx3.ClearRange([]byte("p/"), []byte("p0"))
	require.NoError(t, tx3.Commit(ctx))

	tx4, err := s.NewTransaction(ctx, kv.TransactionOptions{})
	require.NoError(t, err)
	v, err := tx4.Get(ctx, []byte("p/1"))
	require.NoError(t, err)
	require.Nil(t, v)
	v, err = tx4.Get(ctx, []byte("q/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
	require.NoError(t, tx4.Commit(ctx))
}

func TestAtomicAdd(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	delta := make([]byte, 8)
	delta[0] = 5

	tx, err := s.NewTransaction(ctx, kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	tx.AtomicOp([]byte("counter"), delta, kv.MutationAdd)
	tx.AtomicOp([]byte("counter"), delta, kv.MutationAdd)
	require.NoError(t, tx.Commit(ctx))

	tx2, err := s.NewTransaction(ctx, kv.TransactionOptions{})
	require.NoError(t, err)
	v, err := tx2.Get(ctx, []byte("counter"))
	require.NoError(t, err)
	require.Equal(t, byte(10), v[0])
	require.NoError(t, tx2.Commit(ctx))
}

func TestTransactionTooLarge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.NewTransaction(ctx, kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	big := make([]byte, maxTransactionSize+1)
	tx.Set([]byte("k"), big)
	err = tx.Commit(ctx)
	require.ErrorIs(t, err, kv.ErrTransactionTooLarge)
}

func TestDiscardReleasesWriteLock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.NewTransaction(ctx, kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	tx.Set([]byte("k"), []byte("v"))
	tx.(kv.Discardable).Discard()

	tx2, err := s.NewTransaction(ctx, kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	v, err := tx2.Get(ctx, []byte("k"))
	require.NoError(t, err)
	require.Nil(t, v)
	require.NoError(t, tx2.Commit(ctx))
}
