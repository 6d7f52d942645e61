// Package vector holds the distance metrics shared by the flat and HNSW
// vector index backends (§4.G, §4.H).
package vector
