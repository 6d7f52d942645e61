// Package query implements the query executor (§4.J): a (type,
// partition-binding?, index-equality?, predicate, limit, offset,
// cache-policy) description resolved against the store through a driver
// transaction, plus a resumable Cursor built on an opaque base64
// continuation token.
//
// Index selection is narrowed to exact equality on a declared index's full
// key-expression rather than an arbitrary leading prefix of a composite
// expression: see DESIGN.md's Open Question resolutions for why a partial
// leading-prefix range scan was left unbuilt.
package query
