package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/visual-archive/index"
	"github.com/viant/visual-archive/index/bruteforce"
	"github.com/viant/visual-archive/record"
	"github.com/viant/visual-archive/storage"
)

const (
	// IndexKey names the persisted vector index.
	IndexKey = "image_vectors.index"
	// RecordsKey names the persisted record list.
	RecordsKey = "metadata.json"
	// LockName serializes builds against one store.
	LockName = "build"
)

var (
	// ErrArchiveAbsent means no persisted archive exists in the store.
	ErrArchiveAbsent = errors.New("archive: not found")
	// ErrMisaligned means the index and the record list do not describe the
	// same sequence of images.
	ErrMisaligned = errors.New("archive: index and records are misaligned")
	// ErrNoValidImages means a build ingested nothing.
	ErrNoValidImages = errors.New("archive: no valid images")
)

// Archive is a read-only pair of aligned index and records. It is safe for
// concurrent searches.
type Archive struct {
	Index   index.Index
	Records *record.Store
}

// New pairs idx and records after checking their alignment.
func New(idx index.Index, records *record.Store) (*Archive, error) {
	if idx == nil || records == nil {
		return nil, fmt.Errorf("archive: index and records are required")
	}
	if idx.Len() != records.Len() {
		return nil, fmt.Errorf("%w: %d vectors, %d records", ErrMisaligned, idx.Len(), records.Len())
	}
	return &Archive{Index: idx, Records: records}, nil
}

// Len returns the number of archived images.
func (a *Archive) Len() int { return a.Records.Len() }

// Open loads the archive persisted in store.
func Open(ctx context.Context, store storage.Store) (*Archive, error) {
	for _, key := range []string{IndexKey, RecordsKey} {
		ok, err := store.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("archive: check %s: %w", key, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrArchiveAbsent, key)
		}
	}
	idx := &bruteforce.Index{}
	if err := index.Load(ctx, store, IndexKey, idx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrArchiveAbsent, err)
		}
		return nil, err
	}
	records, err := record.Load(ctx, store, RecordsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrArchiveAbsent, err)
		}
		return nil, err
	}
	return New(idx, records)
}
