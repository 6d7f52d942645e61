// Package hnsw implements the approximate HNSW vector index backend
// (§4.H): a hierarchical navigable small-world graph with greedy-descend
// entry-point search, bounded best-first search within a layer, and an
// ACORN-style predicate-filtered search variant that keeps traversing
// non-matching nodes for connectivity while only admitting matches into the
// result set.
//
// Per the serialized-blob storage layout chosen for this repo (see
// DESIGN.md), node metadata and edges live in one JSON blob at the index's
// "graph" key; vectors and the id/label mappings are stored individually so
// a search never has to deserialize a vector it doesn't visit.
package hnsw
