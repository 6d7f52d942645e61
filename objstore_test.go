package objstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/index"
	"github.com/cuemby/objstore/pkg/schema"
	"github.com/cuemby/objstore/pkg/tuple"
)

type widget struct {
	ID  string
	SKU string
}

func widgetIndexes() []index.Descriptor {
	return []index.Descriptor{
		{Name: "by_sku", Kind: index.Unique, Expr: func(record any) (tuple.Tuple, bool) {
			w := record.(*widget)
			if w.SKU == "" {
				return nil, false
			}
			return tuple.Tuple{w.SKU}, true
		}},
	}
}

func widgetType() schema.TypeDescriptor {
	return schema.TypeDescriptor{
		Name:      "widget",
		Directory: directory.Path{directory.Lit("widgets")},
		IDOf: func(record any) (tuple.Tuple, error) {
			return tuple.Tuple{record.(*widget).ID}, nil
		},
		Indexes: widgetIndexes(),
		New:     func() any { return &widget{} },
	}
}

func openTestContainer(t *testing.T) *Container {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(context.Background(), Config{
		DataDir: filepath.Join(dir, "objstore.db"),
		Version: schema.Version{Major: 1},
		Types:   []schema.TypeDescriptor{widgetType()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpen_ReconcilesStaticIndexesToReadable(t *testing.T) {
	c := openTestContainer(t)
	ctx := context.Background()

	ts, err := c.StoreFor(ctx, "widget", nil)
	require.NoError(t, err)

	state, err := ts.IndexState(ctx, "by_sku")
	require.NoError(t, err)
	assert.Equal(t, index.Readable, state)
}

func TestOpen_UnknownTypeErrors(t *testing.T) {
	c := openTestContainer(t)
	ctx := context.Background()

	_, err := c.StoreFor(ctx, "gizmo", nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = c.ResolvePolymorphicDirectory(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownProtocol)
}

func TestContainer_NewSession_RoundTrip(t *testing.T) {
	c := openTestContainer(t)
	ctx := context.Background()

	sess := c.NewSession(false)
	w := &widget{ID: "w1", SKU: "sku-1"}
	require.NoError(t, sess.Insert(w))
	require.NoError(t, sess.Save(ctx))

	ts, err := c.StoreFor(ctx, "widget", nil)
	require.NoError(t, err)
	violations, err := ts.Violations(ctx, "by_sku")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestTypeStore_RebuildIndex(t *testing.T) {
	c := openTestContainer(t)
	ctx := context.Background()

	sess := c.NewSession(false)
	require.NoError(t, sess.Insert(&widget{ID: "w1", SKU: "sku-1"}))
	require.NoError(t, sess.Insert(&widget{ID: "w2", SKU: "sku-2"}))
	require.NoError(t, sess.Save(ctx))

	ts, err := c.StoreFor(ctx, "widget", nil)
	require.NoError(t, err)

	scanned, err := ts.RebuildIndex(ctx, "by_sku")
	require.NoError(t, err)
	assert.Equal(t, 2, scanned)

	violations, err := ts.Violations(ctx, "by_sku")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestTypeStore_RebuildIndex_UnknownIndex(t *testing.T) {
	c := openTestContainer(t)
	ctx := context.Background()

	ts, err := c.StoreFor(ctx, "widget", nil)
	require.NoError(t, err)

	_, err = ts.RebuildIndex(ctx, "nope")
	assert.Error(t, err)
}

func TestContainer_DirectoryCacheLen(t *testing.T) {
	c := openTestContainer(t)
	ctx := context.Background()

	before := c.DirectoryCacheLen()
	_, err := c.ResolveDirectory(ctx, "widget", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.DirectoryCacheLen(), before)
}
