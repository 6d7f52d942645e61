package txn

import "errors"

// ErrConflict is the value wrapped around kv.ErrNotCommitted /
// kv.ErrCommitUnknownResult once retries are exhausted, so callers can
// distinguish "ran out of retries" from "the store refused outright".
var ErrConflict = errors.New("txn: exhausted retries on conflict")

// TransientError marks an error an underlying kv.Store implementation
// returns for a transport-level hiccup (e.g. a file-lock timeout) that the
// driver should retry exactly like a conflict. Backends that have no notion
// of network transience (like the embedded bbolt engine) need never produce
// this; it exists for future non-embedded kv.Store implementations.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "txn: transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }
