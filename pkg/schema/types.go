package schema

import (
	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/index"
	"github.com/cuemby/objstore/pkg/tuple"
)

// ProtocolMembership declares that a TypeDescriptor conforms to a
// polymorphic protocol under the given integer type code.
type ProtocolMembership struct {
	Protocol string
	TypeCode int
}

// TypeDescriptor declares one persistable record type (§3): its directory
// path, declared fields, index descriptors, and optional polymorphic
// protocol membership.
type TypeDescriptor struct {
	// Name is the type's unique identifier within the registry.
	Name string
	// Directory is the ordered static/dynamic path resolving to this type's
	// subspace.
	Directory directory.Path
	// Fields enumerates every field name a dynamic directory segment or
	// index key-expression may reference, for construction-time validation.
	Fields []string
	// Binder builds a directory.Binding from a record instance, supplying
	// values for Directory's dynamic segments. Nil if Directory is static.
	Binder func(record any) *directory.Binding
	// IDOf extracts the primary-key tuple from a record instance.
	IDOf func(record any) (tuple.Tuple, error)
	// Indexes are this type's declared secondary indexes.
	Indexes []index.Descriptor
	// New returns a fresh pointer instance of the concrete type, used to
	// decode a fetched payload.
	New func() any
	// Protocol is non-nil when this type conforms to a polymorphic
	// protocol declared in the registry's ProtocolDescriptor list.
	Protocol *ProtocolMembership
}

// ProtocolDescriptor declares a polymorphic protocol's shared directory and
// its concrete-type-name-to-type-code mapping (§4.K).
type ProtocolDescriptor struct {
	Name      string
	Directory directory.Path
	TypeCodes map[string]int
}

// Version is a (major, minor, patch) schema version, persisted at
// container init and compared against the previously persisted value on
// every subsequent start (§3.1).
type Version struct {
	Major int
	Minor int
	Patch int
}
