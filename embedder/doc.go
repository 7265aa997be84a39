// Package embedder defines the image embedding contract consumed by the
// archive builder and the query engine, with two implementations:
//
//   - [HTTP] calls a CLIP-style embedding service and unwraps its response
//     into a plain vector.
//   - [Hash] derives deterministic pseudo-embeddings from image bytes; it is
//     meant for tests and offline demos.
//
// Embedders return raw vectors. Callers normalize them to unit length.
package embedder
