package embedder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDimension is the embedding width of the CLIP ViT-B/32 family.
const DefaultDimension = 512

// StyleTags is the default zero-shot label set used to tag archive images.
var StyleTags = []string{"Oil Painting", "Sketch", "Photography", "Sculpture", "Digital Art", "Abstract"}

var (
	// ErrEmptyImage is returned when an image carries no data.
	ErrEmptyImage = errors.New("embedder: empty image")
	// ErrNoLabels is returned by Classify when the label set is empty.
	ErrNoLabels = errors.New("embedder: no labels to classify against")
)

// Image is an encoded image (PNG, JPEG, ...). Decoding is left to the
// embedder.
type Image struct {
	Name string
	Data []byte
}

// ReadImage loads the file at path.
func ReadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("embedder: read %s: %w", path, err)
	}
	return Image{Name: filepath.Base(path), Data: data}, nil
}

// Embedder maps images to fixed-length vectors and scores them against text
// labels. Implementations must be deterministic for a given model and safe
// for concurrent use.
type Embedder interface {
	// EmbedImage returns the raw embedding of img, Dimension() values long.
	EmbedImage(ctx context.Context, img Image) ([]float32, error)

	// Classify returns the index into labels of the best-scoring label.
	Classify(ctx context.Context, img Image, labels []string) (int, error)

	// Dimension returns the length of vectors produced by EmbedImage.
	Dimension() int
}

// argmax returns the index of the largest score, lowest index on ties.
func argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
