package boltkv

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cuemby/objstore/pkg/kv"
	bolt "go.etcd.io/bbolt"
)

// maxTransactionSize mirrors FoundationDB's 10 MiB transaction mutation
// budget; the driver surfaces kv.ErrTransactionTooLarge (non-retryable) when
// it's exceeded.
const maxTransactionSize = 10 * 1024 * 1024

// Transaction wraps one *bolt.Tx, giving it the explicit open/stage/Commit
// shape the kv.Transaction contract requires instead of bbolt's native
// callback style (db.Update(func(tx) {...})). This lets pkg/txn's retry loop
// hold a live handle across attempts and re-stage mutations against a fresh
// Transaction on each retry.
type Transaction struct {
	store    *Store
	btx      *bolt.Tx
	data     *bolt.Bucket
	writable bool

	readVersion    int64
	readVersionSet bool

	pendingSize int64
	committed   bool
}

func (t *Transaction) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.data == nil {
		return nil, nil
	}
	v := t.data.Get(key)
	if v == nil {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *Transaction) GetRange(ctx context.Context, begin, end []byte, limit int, snapshot bool, mode kv.StreamingMode) (kv.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.data == nil {
		return &sliceIterator{}, nil
	}
	c := t.data.Cursor()
	var items []kv.KeyValue
	k, v := c.Seek(begin)
	for k != nil {
		if end != nil && bytes.Compare(k, end) >= 0 {
			break
		}
		kk := append([]byte(nil), k...)
		vv := append([]byte(nil), v...)
		items = append(items, kv.KeyValue{Key: kk, Value: vv})
		if limit > 0 && len(items) >= limit {
			break
		}
		k, v = c.Next()
	}
	return &sliceIterator{items: items}, nil
}

func (t *Transaction) Set(key, value []byte) {
	if len(key) > kv.MaxKeySize {
		return
	}
	if t.data != nil {
		_ = t.data.Put(key, value)
	}
	t.pendingSize += int64(len(key) + len(value))
}

func (t *Transaction) Clear(key []byte) {
	if t.data != nil {
		_ = t.data.Delete(key)
	}
	t.pendingSize += int64(len(key))
}

func (t *Transaction) ClearRange(begin, end []byte) {
	if t.data == nil {
		return
	}
	c := t.data.Cursor()
	var toDelete [][]byte
	k, _ := c.Seek(begin)
	for k != nil {
		if end != nil && bytes.Compare(k, end) >= 0 {
			break
		}
		toDelete = append(toDelete, append([]byte(nil), k...))
		k, _ = c.Next()
	}
	for _, k := range toDelete {
		_ = t.data.Delete(k)
		t.pendingSize += int64(len(k))
	}
}

func (t *Transaction) AtomicOp(key []byte, param []byte, op kv.MutationType) {
	if t.data == nil {
		return
	}
	existing := t.data.Get(key)
	cur := uint64(0)
	if existing != nil {
		cur = binary.LittleEndian.Uint64(padTo8(existing))
	}
	delta := binary.LittleEndian.Uint64(padTo8(param))

	var next uint64
	switch op {
	case kv.MutationAdd:
		next = cur + delta
	case kv.MutationMax:
		next = cur
		if delta > cur {
			next = delta
		}
	case kv.MutationMin:
		next = cur
		if existing == nil || delta < cur {
			next = delta
		}
	default:
		next = cur
	}
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, next)
	_ = t.data.Put(key, out)
	t.pendingSize += int64(len(key) + len(out))
}

func padTo8(b []byte) []byte {
	if len(b) >= 8 {
		return b[:8]
	}
	out := make([]byte, 8)
	copy(out, b)
	return out
}

func (t *Transaction) SetOption(option string, value []byte) error {
	// No store-specific options are recognized by the embedded engine;
	// unknown options are accepted silently, matching the "set_option" no-op
	// contract described in §6 for backends that don't need tuning.
	return nil
}

func (t *Transaction) GetApproximateSize(ctx context.Context) (int64, error) {
	return t.pendingSize, nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	if t.committed {
		return nil
	}
	if err := ctx.Err(); err != nil {
		_ = t.btx.Rollback()
		return err
	}
	if t.pendingSize > maxTransactionSize {
		_ = t.btx.Rollback()
		return fmt.Errorf("%w: %d bytes", kv.ErrTransactionTooLarge, t.pendingSize)
	}
	if !t.writable {
		// bbolt rejects Commit on a read-only *bolt.Tx; Rollback is the
		// correct way to release its read lock once the caller is done.
		err := t.btx.Rollback()
		t.committed = true
		return err
	}
	meta := t.btx.Bucket(metaBucket)
	cur := decodeVersion(meta.Get(versionKey))
	next := cur + 1
	if err := meta.Put(versionKey, encodeVersion(next)); err != nil {
		_ = t.btx.Rollback()
		return err
	}
	t.readVersion = next
	t.readVersionSet = true
	if err := t.btx.Commit(); err != nil {
		return fmt.Errorf("boltkv: commit: %w", err)
	}
	t.committed = true
	return nil
}

func (t *Transaction) GetReadVersion(ctx context.Context) (int64, error) {
	if t.readVersionSet {
		return t.readVersion, nil
	}
	meta := t.btx.Bucket(metaBucket)
	if meta == nil {
		return 0, nil
	}
	v := decodeVersion(meta.Get(versionKey))
	t.readVersion = v
	t.readVersionSet = true
	return v, nil
}

func (t *Transaction) SetReadVersion(version int64) {
	t.readVersion = version
	t.readVersionSet = true
}

// Discard releases the underlying bbolt transaction's lock without
// committing. Safe to call after Commit (no-op) or multiple times.
func (t *Transaction) Discard() {
	if t.committed {
		return
	}
	t.committed = true
	_ = t.btx.Rollback()
}

// sliceIterator adapts a pre-materialized slice of rows to kv.Iterator. The
// embedded engine always buffers a range read (bbolt's cursor isn't safe to
// hold across the Transaction's exported API boundary once other mutations
// might stage), so StreamingMode is accepted but has no effect here.
type sliceIterator struct {
	items []kv.KeyValue
	pos   int
	err   error
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Item() kv.KeyValue {
	return it.items[it.pos-1]
}

func (it *sliceIterator) Err() error {
	return it.err
}
