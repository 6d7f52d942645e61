package hnsw

import "errors"

// ErrGraphTooLarge is returned by Insert when the graph's node count has
// reached Config.MaxInlineNodes. A single insert costs
// O(ef_construction · M · current_level) reads against the ordered KV
// store; past the inline cap, callers should push growth to an offline
// batched builder instead (§4.H).
var ErrGraphTooLarge = errors.New("hnsw: graph exceeds max inline node count")

// ErrDimensionMismatch is returned when a vector's length doesn't match the
// index's declared dimension.
var ErrDimensionMismatch = errors.New("hnsw: vector dimension mismatch")
