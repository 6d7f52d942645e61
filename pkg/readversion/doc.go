// Package readversion implements the per-session cached read version (§4.D):
// at most one (version, acquired_at) pair, consulted under a policy that
// trades staleness for round-trip savings.
package readversion
