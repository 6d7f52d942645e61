// Package kv declares the abstract ordered key-value store contract (§6)
// that objstore's core is built against — modeled on the FoundationDB client
// API: byte-string keys and values in strict lexicographic order, streaming
// range reads, atomic mutations, and explicit read-version control. The only
// implementation shipped in this repo is kv/boltkv, backed by bbolt.
package kv

import (
	"context"
	"errors"
	"time"
)

// MutationType identifies an atomic, commutative read-modify-write operation
// applied directly by the store without a round-trip through the caller.
type MutationType int

const (
	// MutationAdd adds a little-endian encoded integer to the existing value
	// (treating a missing key as zero). Used by the HNSW counters.
	MutationAdd MutationType = iota
	// MutationMax keeps the greater of the existing and new value, both read
	// as little-endian unsigned integers.
	MutationMax
	// MutationMin keeps the lesser of the existing and new value, both read
	// as little-endian unsigned integers; a missing key takes the new value.
	MutationMin
)

// StreamingMode hints how eagerly a range read should be buffered.
type StreamingMode int

const (
	// StreamingModeIterator fetches results incrementally as Next is called.
	StreamingModeIterator StreamingMode = iota
	// StreamingModeWantAll buffers the entire range eagerly.
	StreamingModeWantAll
	// StreamingModeSmall hints the caller expects few results.
	StreamingModeSmall
)

// Priority is forwarded to the store to classify transaction scheduling.
type Priority int

const (
	PriorityDefault Priority = iota
	PriorityBatch
	PriorityImmediate
)

// KeyValue is one row of a range read.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Iterator streams the rows of a range read.
type Iterator interface {
	// Next advances to the next row, returning false at end-of-range or on
	// error (check Err to distinguish).
	Next() bool
	// Item returns the current row. Only valid after a successful Next.
	Item() KeyValue
	// Err returns the first error encountered, if any.
	Err() error
}

// TransactionOptions configures a new transaction.
type TransactionOptions struct {
	// ReadVersion, if non-nil, pins the transaction to a specific read
	// version instead of letting the store assign the latest one.
	ReadVersion *int64
	Timeout     time.Duration
	Priority    Priority
	// Writable marks the transaction as read-write. Read-only transactions
	// may still call Commit (a no-op fast path) for symmetry with the driver.
	Writable bool
}

// Transaction is a single logical unit of reads and writes against the
// store, matching the FoundationDB transaction surface named in §6.
type Transaction interface {
	// Get returns the value at key, or (nil, nil) if absent.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// GetRange returns a streaming iterator over [begin, end). snapshot
	// reads trade conflict-range tracking for the ability to read without
	// contending with concurrent writers to the same keys.
	GetRange(ctx context.Context, begin, end []byte, limit int, snapshot bool, mode StreamingMode) (Iterator, error)
	// Set stages a key/value write. Visible to later reads in the same
	// transaction; durable only after Commit succeeds.
	Set(key, value []byte)
	// Clear stages a single-key delete.
	Clear(key []byte)
	// ClearRange stages a delete of every key in [begin, end).
	ClearRange(begin, end []byte)
	// AtomicOp stages a commutative read-modify-write mutation.
	AtomicOp(key []byte, param []byte, op MutationType)
	// SetOption forwards a store-specific tuning knob (no-op on backends
	// that don't recognize it).
	SetOption(option string, value []byte) error
	// GetApproximateSize estimates the size in bytes of the transaction's
	// pending writes, used to pre-empt TransactionTooLarge.
	GetApproximateSize(ctx context.Context) (int64, error)
	// Commit durably applies every staged mutation, or fails with no effect.
	Commit(ctx context.Context) error
	// GetReadVersion returns the version this transaction observes the store
	// at.
	GetReadVersion(ctx context.Context) (int64, error)
	// SetReadVersion pins the transaction's read version explicitly.
	SetReadVersion(version int64)
}

// Discardable is an optional capability a Transaction implementation can
// expose so callers that abandon a transaction without committing (e.g. the
// retry loop in pkg/txn, between attempts) can release underlying engine
// resources such as a write lock. Not part of the core Transaction contract
// because FoundationDB's own client has no equivalent call — its
// transactions are cheap, client-side objects — but the embedded bbolt
// backend holds a real OS-level lock for the lifetime of a writable
// *bolt.Tx, so releasing it promptly matters here.
type Discardable interface {
	Discard()
}

// Store opens transactions against the underlying engine.
type Store interface {
	// NewTransaction begins a transaction. Callers must Commit or the
	// transaction leaks its underlying engine resources (e.g. a bbolt write
	// lock); there is no implicit rollback-on-GC.
	NewTransaction(ctx context.Context, opts TransactionOptions) (Transaction, error)
	// Close releases the underlying engine handle.
	Close() error
}

var (
	// ErrNotCommitted signals an optimistic write-write conflict; the
	// transaction driver (pkg/txn) retries on this error.
	ErrNotCommitted = errors.New("kv: transaction not committed (conflict)")
	// ErrCommitUnknownResult signals the commit outcome could not be
	// determined (e.g. a crash between commit and acknowledgement); the
	// driver retries, relying on the caller's function being idempotent.
	ErrCommitUnknownResult = errors.New("kv: commit result unknown")
	// ErrTransactionTooLarge is a fatal, non-retryable error.
	ErrTransactionTooLarge = errors.New("kv: transaction exceeds size limit")
	// ErrTimeout is returned when a transaction's configured timeout elapses.
	ErrTimeout = errors.New("kv: transaction timed out")
	// ErrKeyTooLarge is returned when a key exceeds the 10 KiB limit (§6).
	ErrKeyTooLarge = errors.New("kv: key exceeds maximum size")
	// ErrValueTooLarge is returned when a value exceeds the inline limit
	// before the record codec has a chance to externalize it.
	ErrValueTooLarge = errors.New("kv: value exceeds maximum size")
)

// MaxKeySize and MaxValueSize are the key and inline-value size limits of §6.
// The record codec uses MaxValueSize as its inline threshold and chunks larger
// payloads; neither the tuple codec nor the record codec checks key length.
const (
	MaxKeySize   = 10 * 1024
	MaxValueSize = 90 * 1024
)
