// Package vector holds the numeric helpers shared by the index and the query
// path: unit normalization and the little-endian float32 encoding used for
// persisted embeddings.
//
// Every embedding that enters an index is expected to have unit L2 norm, so
// the inner product of two stored vectors equals their cosine similarity.
package vector
