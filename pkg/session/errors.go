package session

import "errors"

// ErrConcurrentSaveNotAllowed is returned by Save when a prior Save on the
// same session is still in flight. Commit contention is signaled, never
// silently queued (§5).
var ErrConcurrentSaveNotAllowed = errors.New("session: concurrent save not allowed")

// ErrModelNotFound is returned by FetchByID when no record exists at id and
// it is not present in the pending-insert change-set either.
var ErrModelNotFound = errors.New("session: model not found")

// ErrUnregisteredType is returned by Insert/Delete when record's concrete Go
// type matches no declared type descriptor in the session's registry.
var ErrUnregisteredType = errors.New("session: record's type is not declared in the schema registry")
