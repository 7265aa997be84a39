package query

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/viant/visual-archive/archive"
	"github.com/viant/visual-archive/embedder"
	"github.com/viant/visual-archive/record"
	"github.com/viant/visual-archive/vector"
)

const (
	// FullArchiveTopK is the candidate count retrieved for the full archive view.
	FullArchiveTopK = 20
	// CompactTopK is the candidate count retrieved for the conversational view.
	CompactTopK = 5
)

// Options tune a single search.
type Options struct {
	// TopK is how many candidates to retrieve before filtering. Zero means
	// FullArchiveTopK. It is never derived from the filter.
	TopK int
	// Tags restricts matches to these tags. Empty means no restriction.
	Tags []string
}

// Engine answers similarity queries against one archive. It never mutates
// the archive and is safe for concurrent use.
type Engine struct {
	archive  atomic.Pointer[archive.Archive]
	embedder embedder.Embedder
	logger   logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New returns an Engine over a. A nil archive is allowed; searches then
// fail with IndexUnavailable until SetArchive is called.
func New(a *archive.Archive, emb embedder.Embedder, opts ...Option) *Engine {
	e := &Engine{embedder: emb, logger: logrus.StandardLogger()}
	for _, o := range opts {
		o(e)
	}
	e.archive.Store(a)
	return e
}

// SetArchive swaps in a freshly opened archive. In-flight searches finish
// against the archive they started with.
func (e *Engine) SetArchive(a *archive.Archive) { e.archive.Store(a) }

// Archive returns the current archive, or nil.
func (e *Engine) Archive() *archive.Archive { return e.archive.Load() }

// Tags returns the sorted distinct tags of the archive.
func (e *Engine) Tags() ([]string, error) {
	a := e.archive.Load()
	if a == nil {
		return nil, &Error{Kind: IndexUnavailable, Err: archive.ErrArchiveAbsent}
	}
	return a.Records.AllTags(), nil
}

// Search embeds img and returns archive images ranked by similarity.
func (e *Engine) Search(ctx context.Context, img embedder.Image, opts Options) (*Result, error) {
	a := e.archive.Load()
	if a == nil {
		return nil, &Error{Kind: IndexUnavailable, Err: archive.ErrArchiveAbsent}
	}
	q, err := e.embed(ctx, img, a.Index.Dim())
	if err != nil {
		return nil, err
	}
	if a.Len() == 0 {
		return nil, &Error{Kind: EmptyResult, Reason: ReasonArchiveEmpty}
	}
	k := opts.TopK
	if k <= 0 {
		k = FullArchiveTopK
	}
	hits, err := a.Index.Search(q, k)
	if err != nil {
		return nil, fmt.Errorf("query: search: %w", err)
	}

	candidates := make([]record.Record, len(hits))
	for i, h := range hits {
		rec, err := a.Records.Get(h.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", archive.ErrMisaligned, err)
		}
		candidates[i] = rec
	}

	allowed := tagSet(opts.Tags)
	result := &Result{
		Matches:       make([]Match, 0, len(hits)),
		DominantStyle: DominantStyle(candidates),
		Candidates:    len(hits),
	}
	for i, rec := range candidates {
		if allowed != nil {
			if _, ok := allowed[rec.Tag]; !ok {
				continue
			}
		}
		result.Matches = append(result.Matches, Match{
			Record:       rec,
			Score:        hits[i].Score,
			ScorePercent: ScorePercent(hits[i].Score),
		})
	}

	e.logger.WithFields(logrus.Fields{
		"image":      img.Name,
		"k":          k,
		"candidates": len(hits),
		"matches":    len(result.Matches),
		"tags":       opts.Tags,
	}).Debug("query served")

	if len(result.Matches) == 0 {
		return nil, &Error{Kind: EmptyResult, Reason: ReasonFiltered}
	}
	return result, nil
}

func (e *Engine) embed(ctx context.Context, img embedder.Image, dim int) ([]float32, error) {
	raw, err := e.embedder.EmbedImage(ctx, img)
	if err != nil {
		return nil, &Error{Kind: EmbeddingFailure, Err: err}
	}
	if len(raw) != dim {
		return nil, &Error{Kind: EmbeddingFailure, Err: fmt.Errorf("embedding has %d values, archive expects %d", len(raw), dim)}
	}
	q, err := vector.Normalize(raw)
	if err != nil {
		return nil, &Error{Kind: EmbeddingFailure, Err: err}
	}
	return q, nil
}

func tagSet(tags []string) map[string]struct{} {
	var set map[string]struct{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}
