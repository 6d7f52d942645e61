package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/tuple"
)

// memTx is a minimal in-memory kv.Transaction used to exercise index
// maintenance without bringing in bbolt.
type memTx struct {
	data map[string][]byte
}

func newMemTx() *memTx { return &memTx{data: map[string][]byte{}} }

func (t *memTx) Get(ctx context.Context, key []byte) ([]byte, error) { return t.data[string(key)], nil }
func (t *memTx) GetRange(ctx context.Context, begin, end []byte, limit int, snapshot bool, mode kv.StreamingMode) (kv.Iterator, error) {
	return nil, nil
}
func (t *memTx) Set(key, value []byte)                                 { t.data[string(key)] = value }
func (t *memTx) Clear(key []byte)                                      { delete(t.data, string(key)) }
func (t *memTx) ClearRange(begin, end []byte)                          {}
func (t *memTx) AtomicOp(key []byte, param []byte, op kv.MutationType) {}
func (t *memTx) SetOption(option string, value []byte) error           { return nil }
func (t *memTx) GetApproximateSize(ctx context.Context) (int64, error) { return 0, nil }
func (t *memTx) Commit(ctx context.Context) error                      { return nil }
func (t *memTx) GetReadVersion(ctx context.Context) (int64, error)     { return 0, nil }
func (t *memTx) SetReadVersion(v int64)                                {}

type widget struct {
	SKU string
}

func skuExpr(record any) (tuple.Tuple, bool) {
	w, ok := record.(widget)
	if !ok || w.SKU == "" {
		return nil, false
	}
	return tuple.Tuple{w.SKU}, true
}

func TestScalarIndexAddAndClear(t *testing.T) {
	m := NewMaintainer([]byte{0x01}, Descriptor{Name: "by_sku", Kind: Scalar, Expr: skuExpr}, Readable)
	tx := newMemTx()
	id := tuple.Tuple{int64(1)}

	require.NoError(t, m.Update(context.Background(), tx, nil, widget{SKU: "A"}, id))
	assert.Len(t, tx.data, 1)

	require.NoError(t, m.Update(context.Background(), tx, widget{SKU: "A"}, nil, id))
	assert.Empty(t, tx.data)
}

func TestScalarIndexAllowsSharedKey(t *testing.T) {
	m := NewMaintainer([]byte{0x01}, Descriptor{Name: "by_sku", Kind: Scalar, Expr: skuExpr}, Readable)
	tx := newMemTx()

	require.NoError(t, m.Update(context.Background(), tx, nil, widget{SKU: "A"}, tuple.Tuple{int64(1)}))
	require.NoError(t, m.Update(context.Background(), tx, nil, widget{SKU: "A"}, tuple.Tuple{int64(2)}))
	assert.Len(t, tx.data, 2)
}

func TestSparseExpressionSkipsEntry(t *testing.T) {
	m := NewMaintainer([]byte{0x01}, Descriptor{Name: "by_sku", Kind: Scalar, Expr: skuExpr}, Readable)
	tx := newMemTx()

	require.NoError(t, m.Update(context.Background(), tx, nil, widget{}, tuple.Tuple{int64(1)}))
	assert.Empty(t, tx.data)
}

func TestUniqueIndexRejectsDuplicateWhenReadable(t *testing.T) {
	m := NewMaintainer([]byte{0x02}, Descriptor{Name: "by_sku_unique", Kind: Unique, Expr: skuExpr}, Readable)
	tx := newMemTx()

	require.NoError(t, m.Update(context.Background(), tx, nil, widget{SKU: "A"}, tuple.Tuple{int64(1)}))
	err := m.Update(context.Background(), tx, nil, widget{SKU: "A"}, tuple.Tuple{int64(2)})
	assert.ErrorIs(t, err, ErrUniquenessViolation)
}

func TestUniqueIndexWriteOnlyRecordsViolationButProceeds(t *testing.T) {
	m := NewMaintainer([]byte{0x02}, Descriptor{Name: "by_sku_unique", Kind: Unique, Expr: skuExpr}, WriteOnly)
	tx := newMemTx()

	require.NoError(t, m.Update(context.Background(), tx, nil, widget{SKU: "A"}, tuple.Tuple{int64(1)}))
	err := m.Update(context.Background(), tx, nil, widget{SKU: "A"}, tuple.Tuple{int64(2)})
	require.NoError(t, err)

	// Two key entries: the violation-tracking record and the (overwritten)
	// unique key pointing at the second id.
	assert.Len(t, tx.data, 2)
}

func TestUniqueIndexSameIDIsNotAViolation(t *testing.T) {
	m := NewMaintainer([]byte{0x02}, Descriptor{Name: "by_sku_unique", Kind: Unique, Expr: skuExpr}, Readable)
	tx := newMemTx()

	id := tuple.Tuple{int64(1)}
	require.NoError(t, m.Update(context.Background(), tx, nil, widget{SKU: "A"}, id))
	require.NoError(t, m.Update(context.Background(), tx, nil, widget{SKU: "A"}, id))
	assert.Len(t, tx.data, 1)
}

func TestDisabledIndexMaintainsNothing(t *testing.T) {
	m := NewMaintainer([]byte{0x01}, Descriptor{Name: "by_sku", Kind: Scalar, Expr: skuExpr}, Disabled)
	tx := newMemTx()

	require.NoError(t, m.Update(context.Background(), tx, nil, widget{SKU: "A"}, tuple.Tuple{int64(1)}))
	assert.Empty(t, tx.data)
}

func TestComputeKeysIsPure(t *testing.T) {
	m := NewMaintainer([]byte{0x01}, Descriptor{Name: "by_sku", Kind: Scalar, Expr: skuExpr}, Readable)
	tx := newMemTx()

	keys, err := m.ComputeKeys(widget{SKU: "A"}, tuple.Tuple{int64(1)})
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Empty(t, tx.data, "ComputeKeys must not write")
}
