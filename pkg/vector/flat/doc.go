// Package flat implements the flat (linear-scan) vector index backend
// (§4.G): exact k-nearest-neighbor search by range-scanning the entire
// index subspace and maintaining a bounded max-heap of the k smallest
// distances seen so far. O(n·d) per search, 100% recall.
package flat
