// Package index implements the scalar/unique index maintainer (§4.F): given
// a record type's declared key-expression, it keeps ordered secondary-index
// entries atomic with the record write inside the caller's transaction.
//
// A Scalar index stores one entry per (key-expression, id) pair, so several
// records may share a key. A Unique index stores the id in the entry's
// value instead of its key, so a second record with the same key-expression
// collides structurally; the collision is recorded under the index's
// "__violations__" path and, unless the index is still WriteOnly, fails the
// write with ErrUniquenessViolation.
package index
