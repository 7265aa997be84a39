package index

import (
	"context"
	"fmt"

	"github.com/viant/visual-archive/storage"
)

// Save serializes idx and writes it under key.
func Save(ctx context.Context, store storage.Store, key string, idx Index) error {
	data, err := idx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("index: marshal: %w", err)
	}
	return store.Put(ctx, key, data)
}

// Load reads key and restores it into idx. A missing key yields an error
// wrapping storage.ErrNotFound.
func Load(ctx context.Context, store storage.Store, key string, idx Index) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := idx.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("index: load %s: %w", key, err)
	}
	return nil
}
