// Package boltkv implements the kv.Store / kv.Transaction contract on top of
// go.etcd.io/bbolt, the same embedded B+tree engine the teacher repo used
// for its per-entity buckets (pkg/storage/boltdb.go). Here the engine backs
// one flat ordered byte-key space instead of one bucket per record type: the
// directory and tuple layers above already own key hierarchy, so boltkv
// keeps a single "data" bucket and stores everything objstore's core writes
// as a literal key inside it. A second "meta" bucket holds engine-internal
// bookkeeping that has no business living in the ordered keyspace the core
// sees: the monotonic read-version counter this embedded engine emulates.
package boltkv

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/obs/log"
	bolt "go.etcd.io/bbolt"
)

var (
	dataBucket    = []byte("data")
	metaBucket    = []byte("meta")
	versionKey    = []byte("version")
)

// Store is a kv.Store backed by a single bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt-backed store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltkv: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(dataBucket); err != nil {
			return err
		}
		b, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if b.Get(versionKey) == nil {
			if err := b.Put(versionKey, encodeVersion(1)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("boltkv: initialize buckets: %w", err)
	}
	log.WithComponent("boltkv").Info().Str("path", path).Msg("opened embedded store")
	return &Store{db: db}, nil
}

// NewTransaction begins a bbolt transaction honoring opts.Writable.
func (s *Store) NewTransaction(ctx context.Context, opts kv.TransactionOptions) (kv.Transaction, error) {
	btx, err := s.db.Begin(opts.Writable)
	if err != nil {
		return nil, fmt.Errorf("boltkv: begin transaction: %w", err)
	}
	data := btx.Bucket(dataBucket)
	if data == nil && opts.Writable {
		data, err = btx.CreateBucket(dataBucket)
		if err != nil {
			_ = btx.Rollback()
			return nil, err
		}
	}
	tx := &Transaction{
		btx:      btx,
		data:     data,
		writable: opts.Writable,
		store:    s,
	}
	if opts.ReadVersion != nil {
		tx.readVersion = *opts.ReadVersion
		tx.readVersionSet = true
	}
	return tx, nil
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeVersion(v int64) []byte {
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func decodeVersion(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = (v << 8) | int64(c)
	}
	return v
}
