package embedder

import (
	"context"
	"crypto/md5"
	"encoding/binary"
)

// Hash is a deterministic Embedder that expands an MD5 digest of the image
// bytes into a pseudo-random vector. Identical bytes always map to the same
// vector; different bytes map to nearly orthogonal ones.
type Hash struct {
	dim int
}

// NewHash returns a Hash embedder producing vectors of length dim.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Hash{dim: dim}
}

func (h *Hash) Dimension() int { return h.dim }

func (h *Hash) EmbedImage(ctx context.Context, img Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	return h.expand(img.Data), nil
}

// Classify scores the image against a hashed vector per label.
func (h *Hash) Classify(ctx context.Context, img Image, labels []string) (int, error) {
	if len(labels) == 0 {
		return 0, ErrNoLabels
	}
	v, err := h.EmbedImage(ctx, img)
	if err != nil {
		return 0, err
	}
	scores := make([]float64, len(labels))
	for i, label := range labels {
		lv := h.expand([]byte("label:" + label))
		for j := range v {
			scores[i] += float64(v[j]) * float64(lv[j])
		}
	}
	return argmax(scores), nil
}

func (h *Hash) expand(data []byte) []float32 {
	seed := md5.Sum(data)
	out := make([]float32, h.dim)
	var block [md5.Size + 4]byte
	copy(block[:], seed[:])
	for i := 0; i < h.dim; i += 4 {
		binary.LittleEndian.PutUint32(block[md5.Size:], uint32(i/4))
		sum := md5.Sum(block[:])
		for j := 0; j < 4 && i+j < h.dim; j++ {
			u := binary.LittleEndian.Uint32(sum[j*4:])
			out[i+j] = float32(u)/float32(1<<31) - 1
		}
	}
	return out
}

var _ Embedder = (*Hash)(nil)
