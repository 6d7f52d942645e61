// Package directory implements the subspace/directory resolver (§4.C): it
// maps a logical path of static literals and dynamic field references to a
// stable byte-string key prefix, allocating the mapping on first use and
// caching it for process lifetime.
//
// A Path is built from Lit (a fixed literal segment, e.g. a type name) and
// Field (a dynamic segment whose value is supplied per-resolution via a
// Binding, e.g. a tenant id used to partition a type's records). Resolving a
// path with unbound dynamic segments fails with ErrDynamicFieldsRequired.
// Polymorphic protocol directories may use only static segments; validate
// that at schema-registration time with ValidatePolymorphic.
package directory
