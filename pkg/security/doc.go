// Package security implements the narrow security delegate (§4.P)
// evaluated by a session before returning any record from a fetch path and
// before Save emits each insert/delete into its transaction group. Denial
// is a Security-class error (§7): never retried, never cached.
package security
