// Package recordcodec implements the record serialize/deserialize contract
// (§4.B). Records are encoded with encoding/json, which is self-describing
// by construction (field names are carried in the payload, so additive
// schema changes on either side of a read/write decode transparently) and
// matches the serialization idiom the container's ambient stack already
// uses for its own persisted structures.
//
// An item-slot value carries a single leading tag byte distinguishing an
// inline payload from a sentinel referencing an externally chunked blob
// (§3, §4.B): a payload whose zstd-compressed form exceeds kv.MaxValueSize
// has that compressed form split into fixed-size chunks written to the
// caller's blob subspace, with only the small sentinel kept in the item slot
// itself; a payload under the threshold is stored inline, uncompressed. Load and ClearChunks
// make this transparent to callers on the read and delete paths
// respectively.
package recordcodec
