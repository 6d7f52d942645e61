// Package txn implements the transaction driver (§4.E): it runs a
// caller-supplied function against a live kv.Transaction, retrying on
// conflict/transient failures with exponential backoff and jitter, honoring
// a configurable timeout, and cooperating with a per-session read-version
// cache (pkg/readversion) to skip a fresh read-version round trip when the
// caller's cache policy allows it.
package txn
