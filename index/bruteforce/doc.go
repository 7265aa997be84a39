// Package bruteforce provides an exact vector index that answers kNN queries
// by scoring every stored vector with an inner product. Callers store unit
// vectors, so the score equals cosine similarity. It supports a compact
// binary format for persistence.
package bruteforce
