// Package polymorphic implements the shared-directory dual-write and
// cross-type fetch for polymorphic protocols (§4.K): a concrete record type
// may conform to a protocol declaring a shared directory and a small
// integer type_code per concrete type name. Every insert/update/delete on
// a conforming type whose own directory differs from the protocol's is
// mirrored to the protocol's shared directory under that type_code, with
// byte-identical payloads (serialization is shared, never re-encoded).
package polymorphic
