package record

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/viant/visual-archive/storage"
)

func TestNew_Defaults(t *testing.T) {
	r := New(3, "a.png", "images/a.png", "Sketch")
	if r.Artist != DefaultArtist || r.Year != DefaultYear {
		t.Fatalf("defaults = %q/%q, want %q/%q", r.Artist, r.Year, DefaultArtist, DefaultYear)
	}
}

func TestStore_AppendGet(t *testing.T) {
	s := NewStore()
	if err := s.Append(New(0, "a.png", "images/a.png", "Sketch")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(New(2, "c.png", "images/c.png", "Sketch")); err == nil {
		t.Fatalf("expected error appending id 2 at position 1")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	r, err := s.Get(0)
	if err != nil {
		t.Fatalf("Get(0) failed: %v", err)
	}
	if r.Filename != "a.png" {
		t.Fatalf("Get(0).Filename = %q, want a.png", r.Filename)
	}
	for _, pos := range []int{-1, 1, 99} {
		if _, err := s.Get(pos); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Get(%d) error = %v, want ErrOutOfRange", pos, err)
		}
	}
}

func TestStore_AllTags(t *testing.T) {
	s := NewStore()
	for i, tag := range []string{"Sketch", "Abstract", "Sketch", "Oil Painting"} {
		if err := s.Append(New(i, "f", "p", tag)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	want := []string{"Abstract", "Oil Painting", "Sketch"}
	if got := s.AllTags(); !reflect.DeepEqual(got, want) {
		t.Fatalf("AllTags = %v, want %v", got, want)
	}
	if got := NewStore().AllTags(); len(got) != 0 {
		t.Fatalf("AllTags on empty store = %v, want empty", got)
	}
}

func TestStore_JSONFields(t *testing.T) {
	s := NewStore()
	_ = s.Append(New(0, "a.png", "images/a.png", "Sketch"))
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("output is not an array of objects: %v", err)
	}
	for _, field := range []string{"id", "filename", "path", "tag", "artist", "year"} {
		if _, ok := raw[0][field]; !ok {
			t.Fatalf("field %q missing from %s", field, data)
		}
	}
	empty, _ := json.Marshal(NewStore())
	if string(empty) != "[]" {
		t.Fatalf("empty store encodes as %s, want []", empty)
	}
}

func TestStore_UnmarshalRejectsMisalignedIDs(t *testing.T) {
	s := NewStore()
	err := s.UnmarshalJSON([]byte(`[{"id":0,"tag":"A"},{"id":5,"tag":"B"}]`))
	if err == nil {
		t.Fatalf("expected error for id/position mismatch")
	}
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s := NewStore()
	_ = s.Append(New(0, "a.png", "images/a.png", "Sketch"))
	_ = s.Append(Record{ID: 1, Filename: "b.jpg", Path: "images/b.jpg", Tag: "Abstract", Artist: "Hilma af Klint", Year: "1907"})
	if err := s.Save(ctx, mem, "metadata.json"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, _ := mem.Get(ctx, "metadata.json")
	if !strings.HasPrefix(string(raw), "[\n") {
		t.Fatalf("saved JSON is not indented: %q", raw)
	}

	loaded, err := Load(ctx, mem, "metadata.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Records(), s.Records()) {
		t.Fatalf("Load = %+v, want %+v", loaded.Records(), s.Records())
	}
	if _, err := Load(ctx, mem, "nope.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want storage.ErrNotFound", err)
	}
}
