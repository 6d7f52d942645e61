package schema

import "errors"

// ErrDuplicateType is returned by NewRegistry when two TypeDescriptors
// declare the same type name, whatever their directories.
var ErrDuplicateType = errors.New("schema: duplicate type name")

// ErrUndeclaredField is returned by NewRegistry when a type's directory
// path references a dynamic field the type never declared.
var ErrUndeclaredField = errors.New("schema: dynamic directory segment references an undeclared field")

// ErrSchemaVersionIncompatible is returned by EnsureVersion when the
// persisted schema version's major component differs from the registry's
// declared version: a backward-incompatible change that refuses to start
// rather than silently reconciling.
var ErrSchemaVersionIncompatible = errors.New("schema: persisted schema version is incompatible")
