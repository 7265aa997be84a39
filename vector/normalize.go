package vector

import (
	"errors"
	"math"

	"github.com/viant/vec/search"
)

// UnitTolerance is the allowed deviation of a normalized vector's L2 norm from 1.
const UnitTolerance = 1e-5

var (
	// ErrEmptyVector is returned when normalizing a zero-length vector.
	ErrEmptyVector = errors.New("vector: empty vector")
	// ErrZeroVector is returned when a vector has zero (or non-finite) norm
	// and therefore has no direction.
	ErrZeroVector = errors.New("vector: zero-norm vector cannot be normalized")
)

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	m := float64(search.Float32s(v).Magnitude())
	if !math.IsInf(m, 0) {
		return m
	}
	// float32 accumulation overflowed; finite inputs still have a finite norm.
	var s float64
	for _, x := range v {
		f := float64(x)
		s += f * f
	}
	return math.Sqrt(s)
}

// Normalize returns a copy of v scaled to unit length. The input is not
// modified.
func Normalize(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, ErrEmptyVector
	}
	mag := Norm(v)
	if mag == 0 || math.IsNaN(mag) || math.IsInf(mag, 0) {
		return nil, ErrZeroVector
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out, nil
}

// IsUnit reports whether v has unit L2 norm within tol.
func IsUnit(v []float32, tol float64) bool {
	if len(v) == 0 {
		return false
	}
	return math.Abs(Norm(v)-1) <= tol
}
