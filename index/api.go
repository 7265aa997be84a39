package index

// Hit is one search result: the stored vector's position and its inner
// product with the query.
type Hit struct {
	Position int
	Score    float64
}

// Index defines an append-only vector index addressed by position.
// Positions are assigned sequentially from zero in insertion order and are
// never reused.
type Index interface {
	// Dim returns the fixed dimension every stored vector must have.
	Dim() int

	// Len returns the number of stored vectors.
	Len() int

	// Add appends vectors in order. Either every vector is added or, on
	// error, none is.
	Add(vectors ...[]float32) error

	// Search returns up to k hits ordered by descending score, ties broken
	// by ascending position. An empty index yields an empty result.
	Search(query []float32, k int) ([]Hit, error)

	// Vector returns a copy of the vector stored at pos.
	Vector(pos int) ([]float32, error)

	// MarshalBinary serializes the index into a byte slice.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary replaces the index content with a serialized one.
	UnmarshalBinary(data []byte) error
}
