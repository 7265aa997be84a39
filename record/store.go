package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/viant/visual-archive/storage"
)

// ErrOutOfRange is returned by Get for an unpopulated position.
var ErrOutOfRange = errors.New("record: position out of range")

// Store is an append-only sequence of records addressed by position.
type Store struct {
	records []Record
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Append adds r at the next position. r.ID must equal that position.
func (s *Store) Append(r Record) error {
	if r.ID != len(s.records) {
		return fmt.Errorf("record: id %d does not match next position %d", r.ID, len(s.records))
	}
	s.records = append(s.records, r)
	return nil
}

// Get returns the record at pos.
func (s *Store) Get(pos int) (Record, error) {
	if pos < 0 || pos >= len(s.records) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, pos, len(s.records))
	}
	return s.records[pos], nil
}

// Records returns a copy of all records in position order.
func (s *Store) Records() []Record {
	return append([]Record(nil), s.records...)
}

// AllTags returns the distinct tags present, sorted.
func (s *Store) AllTags() []string {
	seen := make(map[string]struct{}, 8)
	tags := make([]string, 0, 8)
	for _, r := range s.records {
		if _, ok := seen[r.Tag]; ok {
			continue
		}
		seen[r.Tag] = struct{}{}
		tags = append(tags, r.Tag)
	}
	sort.Strings(tags)
	return tags
}

// MarshalJSON encodes the store as an array of record objects.
func (s *Store) MarshalJSON() ([]byte, error) {
	if s.records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.records)
}

// UnmarshalJSON replaces the store with the decoded array. Every record's id
// must equal its array position.
func (s *Store) UnmarshalJSON(data []byte) error {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("record: decode: %w", err)
	}
	for i, r := range records {
		if r.ID != i {
			return fmt.Errorf("record: entry %d has id %d", i, r.ID)
		}
	}
	s.records = records
	return nil
}

// Save writes the store under key as indented JSON.
func (s *Store) Save(ctx context.Context, store storage.Store, key string) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "    "); err != nil {
		return err
	}
	return store.Put(ctx, key, buf.Bytes())
}

// Load reads the store saved under key. A missing key yields an error
// wrapping storage.ErrNotFound.
func Load(ctx context.Context, store storage.Store, key string) (*Store, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s := NewStore()
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}
