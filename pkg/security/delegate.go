package security

import (
	"context"
	"fmt"
)

// Delegate is consulted before the session's FetchByID or the query
// executor (Fetch, Count, cursors) returns a record, and before Save emits
// each insert/delete into its transaction group. Polymorphic reads
// (pkg/polymorphic) and vector searches do not consult it.
type Delegate interface {
	CanRead(ctx context.Context, typeName string, id []any) error
	CanWrite(ctx context.Context, typeName string, id []any) error
}

// AllowAll is the container's default delegate: every read and write is
// permitted.
type AllowAll struct{}

func (AllowAll) CanRead(ctx context.Context, typeName string, id []any) error  { return nil }
func (AllowAll) CanWrite(ctx context.Context, typeName string, id []any) error { return nil }

// DenyDelegate denies every read and write, wrapping Reason (if set) or
// ErrSecurityDenied otherwise. Useful for tests asserting a session
// respects denial uniformly across its read and write paths.
type DenyDelegate struct {
	Reason string
}

func (d DenyDelegate) CanRead(ctx context.Context, typeName string, id []any) error {
	return d.deny(typeName)
}

func (d DenyDelegate) CanWrite(ctx context.Context, typeName string, id []any) error {
	return d.deny(typeName)
}

func (d DenyDelegate) deny(typeName string) error {
	if d.Reason != "" {
		return fmt.Errorf("%w: %s: %s", ErrSecurityDenied, typeName, d.Reason)
	}
	return fmt.Errorf("%w: %s", ErrSecurityDenied, typeName)
}

// PredicateFunc evaluates one access check, e.g. matching a tenant id
// against the directory partition binding encoded in id.
type PredicateFunc func(ctx context.Context, typeName string, id []any) bool

// PredicateDelegate composes simple row-level policies from plain
// functions: a nil ReadFn/WriteFn allows every call on that path.
type PredicateDelegate struct {
	ReadFn  PredicateFunc
	WriteFn PredicateFunc
}

func (p PredicateDelegate) CanRead(ctx context.Context, typeName string, id []any) error {
	if p.ReadFn == nil || p.ReadFn(ctx, typeName, id) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSecurityDenied, typeName)
}

func (p PredicateDelegate) CanWrite(ctx context.Context, typeName string, id []any) error {
	if p.WriteFn == nil || p.WriteFn(ctx, typeName, id) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSecurityDenied, typeName)
}
