package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/index"
	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/txn"
)

func testRegistryWithOneIndex(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(Version{1, 0, 0}, []TypeDescriptor{
		{
			Name:      "widget",
			Directory: directory.Path{directory.Lit("widgets")},
			Indexes: []index.Descriptor{
				{Name: "by_sku", Kind: index.Scalar},
			},
		},
	}, nil)
	require.NoError(t, err)
	return r
}

func TestReconcileTransitionsIndexToReadable(t *testing.T) {
	store := newMemStore()
	driver := txn.NewDriver(store, txn.DefaultConfig())
	resolver, err := directory.NewResolver(driver, 4)
	require.NoError(t, err)
	r := testRegistryWithOneIndex(t)

	rec := NewReconciler(driver, resolver, r, nil)
	require.NoError(t, rec.RunOnce(context.Background()))

	prefix, err := resolver.Resolve(context.Background(), directory.Path{directory.Lit("widgets")}, nil)
	require.NoError(t, err)

	tx, err := store.NewTransaction(context.Background(), kv.TransactionOptions{})
	require.NoError(t, err)
	state, err := ReadIndexState(context.Background(), tx, prefix, "by_sku")
	require.NoError(t, err)
	assert.Equal(t, index.Readable, state)
}

func TestReconcileRespectsPinnedState(t *testing.T) {
	store := newMemStore()
	driver := txn.NewDriver(store, txn.DefaultConfig())
	resolver, err := directory.NewResolver(driver, 4)
	require.NoError(t, err)
	r := testRegistryWithOneIndex(t)

	pinned := map[string]index.State{"widget.by_sku": index.WriteOnly}
	rec := NewReconciler(driver, resolver, r, pinned)
	require.NoError(t, rec.RunOnce(context.Background()))

	prefix, err := resolver.Resolve(context.Background(), directory.Path{directory.Lit("widgets")}, nil)
	require.NoError(t, err)

	tx, err := store.NewTransaction(context.Background(), kv.TransactionOptions{})
	require.NoError(t, err)
	state, err := ReadIndexState(context.Background(), tx, prefix, "by_sku")
	require.NoError(t, err)
	assert.Equal(t, index.WriteOnly, state)
}

func TestReconcileSkipsDynamicDirectoryTypes(t *testing.T) {
	store := newMemStore()
	driver := txn.NewDriver(store, txn.DefaultConfig())
	resolver, err := directory.NewResolver(driver, 4)
	require.NoError(t, err)

	r, err := NewRegistry(Version{1, 0, 0}, []TypeDescriptor{
		{
			Name:      "widget",
			Directory: directory.Path{directory.Lit("widgets"), directory.Field("tenant")},
			Fields:    []string{"tenant"},
			Indexes:   []index.Descriptor{{Name: "by_sku", Kind: index.Scalar}},
		},
	}, nil)
	require.NoError(t, err)

	rec := NewReconciler(driver, resolver, r, nil)
	assert.NoError(t, rec.RunOnce(context.Background()))
}

func TestEnsureIndexStatePromotesDisabledToReadableOnce(t *testing.T) {
	store := newMemStore()
	driver := txn.NewDriver(store, txn.DefaultConfig())
	resolver, err := directory.NewResolver(driver, 4)
	require.NoError(t, err)
	prefix, err := resolver.Resolve(context.Background(), directory.Path{directory.Lit("tenants")}, nil)
	require.NoError(t, err)

	tx, err := store.NewTransaction(context.Background(), kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	state, err := EnsureIndexState(context.Background(), tx, prefix, "by_sku")
	require.NoError(t, err)
	assert.Equal(t, index.Readable, state)
	require.NoError(t, tx.Commit(context.Background()))

	tx2, err := store.NewTransaction(context.Background(), kv.TransactionOptions{})
	require.NoError(t, err)
	state2, err := ReadIndexState(context.Background(), tx2, prefix, "by_sku")
	require.NoError(t, err)
	assert.Equal(t, index.Readable, state2)
}

func TestEnsureIndexStateLeavesNonDisabledStateAlone(t *testing.T) {
	store := newMemStore()
	driver := txn.NewDriver(store, txn.DefaultConfig())
	resolver, err := directory.NewResolver(driver, 4)
	require.NoError(t, err)
	prefix, err := resolver.Resolve(context.Background(), directory.Path{directory.Lit("tenants")}, nil)
	require.NoError(t, err)

	tx, err := store.NewTransaction(context.Background(), kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, writeIndexState(tx, prefix, "by_sku", index.WriteOnly))
	require.NoError(t, tx.Commit(context.Background()))

	tx2, err := store.NewTransaction(context.Background(), kv.TransactionOptions{Writable: true})
	require.NoError(t, err)
	state, err := EnsureIndexState(context.Background(), tx2, prefix, "by_sku")
	require.NoError(t, err)
	assert.Equal(t, index.WriteOnly, state)
}
