package bruteforce

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/viant/visual-archive/index"
	"github.com/viant/visual-archive/vector"
)

const (
	magic         = "VAIX"
	formatVersion = 1
	headerSize    = 16
)

var (
	// ErrDimension is returned when a vector's length differs from the index dimension.
	ErrDimension = errors.New("bruteforce: dimension mismatch")
	// ErrPosition is returned by Vector for an unpopulated position.
	ErrPosition = errors.New("bruteforce: position out of range")
	// ErrNotUnit is returned when a stored vector's L2 norm is not 1.
	ErrNotUnit = errors.New("bruteforce: vector is not unit length")
)

// Index is an exact inner-product index over fixed-dimension vectors.
// Search may run concurrently once no more vectors are being added.
type Index struct {
	dim  int
	vecs [][]float32
}

// New returns an empty index for vectors of dimension dim.
func New(dim int) *Index { return &Index{dim: dim} }

func (i *Index) Dim() int { return i.dim }

func (i *Index) Len() int { return len(i.vecs) }

// Add validates every vector before appending any of them. Vectors must be
// finite and of unit length within vector.UnitTolerance.
func (i *Index) Add(vectors ...[]float32) error {
	if i.dim <= 0 {
		return fmt.Errorf("bruteforce: invalid dimension %d", i.dim)
	}
	for j, v := range vectors {
		if err := i.check(v); err != nil {
			return fmt.Errorf("vector %d: %w", j, err)
		}
	}
	for _, v := range vectors {
		i.vecs = append(i.vecs, append([]float32(nil), v...))
	}
	return nil
}

// Search scores the query against every stored vector and returns the top k.
func (i *Index) Search(query []float32, k int) ([]index.Hit, error) {
	if k < 0 {
		return nil, fmt.Errorf("bruteforce: negative k %d", k)
	}
	if len(query) != i.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimension, len(query), i.dim)
	}
	if !finite(query) {
		return nil, errors.New("bruteforce: query has non-finite component")
	}
	if k == 0 || len(i.vecs) == 0 {
		return []index.Hit{}, nil
	}
	hits := make([]index.Hit, len(i.vecs))
	for pos, v := range i.vecs {
		hits[pos] = index.Hit{Position: pos, Score: dot(query, v)}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

func (i *Index) Vector(pos int) ([]float32, error) {
	if pos < 0 || pos >= len(i.vecs) {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrPosition, pos, len(i.vecs))
	}
	return append([]float32(nil), i.vecs[pos]...), nil
}

// MarshalBinary stores: magic "VAIX", version(uint32), dim(uint32), n(uint32),
// then n*dim little-endian float32 values in position order.
func (i *Index) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, headerSize+4*i.dim*len(i.vecs))
	out = append(out, magic...)
	out = binary.LittleEndian.AppendUint32(out, formatVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(i.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(i.vecs)))
	for _, v := range i.vecs {
		out = vector.AppendEmbedding(out, v)
	}
	return out, nil
}

// UnmarshalBinary restores the index from bytes produced by MarshalBinary.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return errors.New("bruteforce: invalid data")
	}
	if string(data[:4]) != magic {
		return fmt.Errorf("bruteforce: bad magic %q", data[:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != formatVersion {
		return fmt.Errorf("bruteforce: unsupported format version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	n := int(binary.LittleEndian.Uint32(data[12:16]))
	if dim <= 0 {
		return fmt.Errorf("bruteforce: invalid dimension %d", dim)
	}
	body := data[headerSize:]
	if len(body) != 4*dim*n {
		return fmt.Errorf("bruteforce: truncated: have %d bytes, want %d", len(body), 4*dim*n)
	}
	flat, err := vector.DecodeEmbedding(body)
	if err != nil {
		return err
	}
	restored := &Index{dim: dim}
	vecs := make([][]float32, n)
	for j := range vecs {
		vecs[j] = flat[j*dim : (j+1)*dim : (j+1)*dim]
		if err := restored.check(vecs[j]); err != nil {
			return fmt.Errorf("bruteforce: stored vector %d: %w", j, err)
		}
	}
	i.dim, i.vecs = dim, vecs
	return nil
}

func (i *Index) check(v []float32) error {
	if len(v) != i.dim {
		return fmt.Errorf("%w: has %d, index has %d", ErrDimension, len(v), i.dim)
	}
	if !finite(v) {
		return errors.New("bruteforce: non-finite component")
	}
	if !vector.IsUnit(v, vector.UnitTolerance) {
		return fmt.Errorf("%w: norm %v", ErrNotUnit, vector.Norm(v))
	}
	return nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

var _ index.Index = (*Index)(nil)
