package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/viant/visual-archive/archive"
	"github.com/viant/visual-archive/embedder"
	"github.com/viant/visual-archive/index/bruteforce"
	"github.com/viant/visual-archive/record"
	"github.com/viant/visual-archive/vector"
)

// lookupEmbedder returns the vector registered for the image name.
type lookupEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (l *lookupEmbedder) Dimension() int { return l.dim }

func (l *lookupEmbedder) EmbedImage(_ context.Context, img embedder.Image) ([]float32, error) {
	v, ok := l.vectors[img.Name]
	if !ok {
		return nil, errors.New("cannot identify image file")
	}
	return v, nil
}

func (l *lookupEmbedder) Classify(context.Context, embedder.Image, []string) (int, error) {
	return 0, nil
}

func buildArchive(t *testing.T, dim int, vecs [][]float32, tags []string) *archive.Archive {
	t.Helper()
	idx := bruteforce.New(dim)
	records := record.NewStore()
	for i, v := range vecs {
		u, err := vector.Normalize(v)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if err := idx.Add(u); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		name := fmt.Sprintf("img%02d.png", i)
		if err := records.Append(record.New(i, name, "images/"+name, tags[i])); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	a, err := archive.New(idx, records)
	if err != nil {
		t.Fatalf("archive.New failed: %v", err)
	}
	return a
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// threeItemEngine holds tags {A, A, B}; the query "q" is closest to position 2.
func threeItemEngine(t *testing.T) *Engine {
	a := buildArchive(t, 3,
		[][]float32{{1, 0, 0}, {0.8, 0.6, 0}, {0, 1, 0}},
		[]string{"A", "A", "B"})
	emb := &lookupEmbedder{dim: 3, vectors: map[string][]float32{
		"q":    {0.1, 1, 0},
		"zero": {0, 0, 0},
		"wide": {1, 0, 0, 0},
	}}
	return New(a, emb, WithLogger(quiet()))
}

func TestSearch_Unfiltered(t *testing.T) {
	e := threeItemEngine(t)
	res, err := e.Search(context.Background(), embedder.Image{Name: "q"}, Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	wantPos := []int{2, 1, 0}
	if len(res.Matches) != 3 {
		t.Fatalf("len(matches) = %d, want 3", len(res.Matches))
	}
	for i, m := range res.Matches {
		if m.ID != wantPos[i] {
			t.Fatalf("match %d id = %d, want %d", i, m.ID, wantPos[i])
		}
		if m.ScorePercent != ScorePercent(m.Score) {
			t.Fatalf("match %d percent = %v, score %v", i, m.ScorePercent, m.Score)
		}
	}
	if res.DominantStyle != "A" {
		t.Fatalf("DominantStyle = %q, want A", res.DominantStyle)
	}
	if res.Candidates != 3 {
		t.Fatalf("Candidates = %d, want 3", res.Candidates)
	}
	best, ok := res.Best()
	if !ok || best.Tag != "B" {
		t.Fatalf("Best = %+v, %v", best, ok)
	}
}

func TestSearch_FilterAfterRetrieval(t *testing.T) {
	e := threeItemEngine(t)
	res, err := e.Search(context.Background(), embedder.Image{Name: "q"}, Options{TopK: 3, Tags: []string{"A"}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Matches) != 2 || res.Matches[0].ID != 1 || res.Matches[1].ID != 0 {
		t.Fatalf("filtered matches = %+v, want ids [1 0]", res.Matches)
	}
	if res.Matches[0].Score < res.Matches[1].Score {
		t.Fatalf("filtered matches not ranked by score")
	}
	// dominant style is computed before filtering
	if res.DominantStyle != "A" || res.Candidates != 3 {
		t.Fatalf("dominant/candidates = %q/%d", res.DominantStyle, res.Candidates)
	}
}

func TestSearch_FilterCanEmptyATopKWindow(t *testing.T) {
	e := threeItemEngine(t)
	// with K=1 only position 2 (tag B) is retrieved, so an A filter leaves nothing
	_, err := e.Search(context.Background(), embedder.Image{Name: "q"}, Options{TopK: 1, Tags: []string{"A"}})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("Search error = %v, want ErrEmptyResult", err)
	}
	if ReasonOf(err) != ReasonFiltered {
		t.Fatalf("reason = %q, want %q", ReasonOf(err), ReasonFiltered)
	}
}

func TestSearch_BlankTagsMeanNoFilter(t *testing.T) {
	e := threeItemEngine(t)
	res, err := e.Search(context.Background(), embedder.Image{Name: "q"}, Options{Tags: []string{"", "  "}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Matches) != 3 {
		t.Fatalf("len(matches) = %d, want 3", len(res.Matches))
	}
}

func TestSearch_Errors(t *testing.T) {
	e := threeItemEngine(t)
	ctx := context.Background()
	testCases := []struct {
		name string
		img  string
		kind Kind
	}{
		{name: "unknown image", img: "missing", kind: EmbeddingFailure},
		{name: "zero vector", img: "zero", kind: EmbeddingFailure},
		{name: "dimension mismatch", img: "wide", kind: EmbeddingFailure},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Search(ctx, embedder.Image{Name: tc.img}, Options{})
			if KindOf(err) != tc.kind {
				t.Fatalf("Search error = %v, want kind %v", err, tc.kind)
			}
			if !errors.Is(err, ErrEmbeddingFailure) {
				t.Fatalf("errors.Is(ErrEmbeddingFailure) = false for %v", err)
			}
		})
	}
	_, err := e.Search(ctx, embedder.Image{Name: "zero"}, Options{})
	if !errors.Is(err, vector.ErrZeroVector) {
		t.Fatalf("zero vector cause lost: %v", err)
	}
}

func TestSearch_IndexUnavailable(t *testing.T) {
	e := New(nil, embedder.NewHash(8), WithLogger(quiet()))
	_, err := e.Search(context.Background(), embedder.Image{Name: "q", Data: []byte("x")}, Options{})
	if !errors.Is(err, ErrIndexUnavailable) || !errors.Is(err, archive.ErrArchiveAbsent) {
		t.Fatalf("Search error = %v, want IndexUnavailable wrapping ErrArchiveAbsent", err)
	}
	if _, err := e.Tags(); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("Tags error = %v, want IndexUnavailable", err)
	}

	e.SetArchive(buildArchive(t, 8, [][]float32{{1, 0, 0, 0, 0, 0, 0, 0}}, []string{"Sketch"}))
	if _, err := e.Search(context.Background(), embedder.Image{Name: "q", Data: []byte("x")}, Options{}); err != nil {
		t.Fatalf("Search after SetArchive failed: %v", err)
	}
}

func TestSearch_EmptyArchive(t *testing.T) {
	a, err := archive.New(bruteforce.New(3), record.NewStore())
	if err != nil {
		t.Fatalf("archive.New failed: %v", err)
	}
	e := New(a, &lookupEmbedder{dim: 3, vectors: map[string][]float32{"q": {1, 0, 0}}}, WithLogger(quiet()))
	_, err = e.Search(context.Background(), embedder.Image{Name: "q"}, Options{})
	if !errors.Is(err, ErrEmptyResult) || ReasonOf(err) != ReasonArchiveEmpty {
		t.Fatalf("Search error = %v, want EmptyResult/archive_empty", err)
	}
}

func TestSearch_TopKDefaults(t *testing.T) {
	n := 30
	vecs := make([][]float32, n)
	tags := make([]string, n)
	for i := range vecs {
		vecs[i] = []float32{1, float32(i) / 10}
		tags[i] = "Sketch"
	}
	e := New(buildArchive(t, 2, vecs, tags), &lookupEmbedder{dim: 2, vectors: map[string][]float32{"q": {1, 0}}}, WithLogger(quiet()))
	res, err := e.Search(context.Background(), embedder.Image{Name: "q"}, Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Matches) != FullArchiveTopK {
		t.Fatalf("default matches = %d, want %d", len(res.Matches), FullArchiveTopK)
	}
	res, _ = e.Search(context.Background(), embedder.Image{Name: "q"}, Options{TopK: CompactTopK})
	if len(res.Matches) != CompactTopK {
		t.Fatalf("compact matches = %d, want %d", len(res.Matches), CompactTopK)
	}
	if res.Matches[0].ID != 0 {
		t.Fatalf("best match id = %d, want 0", res.Matches[0].ID)
	}
}

func TestTags(t *testing.T) {
	e := threeItemEngine(t)
	tags, err := e.Tags()
	if err != nil {
		t.Fatalf("Tags failed: %v", err)
	}
	if len(tags) != 2 || tags[0] != "A" || tags[1] != "B" {
		t.Fatalf("Tags = %v, want [A B]", tags)
	}
}

func TestSearch_ConcurrentWithArchiveSwap(t *testing.T) {
	e := threeItemEngine(t)
	first := e.Archive()
	second := buildArchive(t, 3, [][]float32{{0, 1, 0}, {0, 0.6, 0.8}}, []string{"C", "C"})

	const workers, rounds = 8, 50
	var wg sync.WaitGroup
	stop := make(chan struct{})
	swapped := make(chan struct{})
	go func() {
		defer close(swapped)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				e.SetArchive(second)
			} else {
				e.SetArchive(first)
			}
		}
	}()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				res, err := e.Search(context.Background(), embedder.Image{Name: "q"}, Options{})
				if err != nil {
					t.Errorf("Search failed: %v", err)
					return
				}
				best, _ := res.Best()
				switch res.Candidates {
				case 3:
					if best.Tag != "B" || res.DominantStyle != "A" {
						t.Errorf("first archive result mixed: best %q, dominant %q", best.Tag, res.DominantStyle)
						return
					}
				case 2:
					if best.Tag != "C" || res.DominantStyle != "C" {
						t.Errorf("second archive result mixed: best %q, dominant %q", best.Tag, res.DominantStyle)
						return
					}
				default:
					t.Errorf("Candidates = %d, want 2 or 3", res.Candidates)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-swapped
}
