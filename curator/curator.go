package curator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/viant/visual-archive/embedder"
	"github.com/viant/visual-archive/query"
)

const (
	noImageReply   = "I need an image to see!"
	offlineReply   = "My database is offline. Please run the builder."
	uniqueReply    = "I couldn't find anything similar in the archive. It's truly unique!"
	troubleReplyFm = "I had trouble seeing that: %v"
	closestMatchFm = " The closest match is a piece by **%s** (%s%% similarity). Here are the visual comparisons:"
)

var stylePhrases = []string{
	"This piece reminds me of the **%s** style.",
	"I see strong visual parallels with **%s** works.",
	"The textures here are very similar to our **%s** collection.",
}

// Processor is the conversational capability: analyse an input, then phrase
// the analysis.
type Processor interface {
	Process(ctx context.Context, img embedder.Image) (*Finding, error)
	Respond(f *Finding) string
}

// Finding is what Process learned about an image. Err carries a recoverable
// query condition (archive offline, unreadable image, no matches) so
// Respond can phrase it.
type Finding struct {
	Image         string        `json:"image"`
	Matches       []query.Match `json:"matches"`
	DominantStyle string        `json:"dominant_style"`
	Err           error         `json:"-"`
}

// Searcher is the part of query.Engine the curator depends on.
type Searcher interface {
	Search(ctx context.Context, img embedder.Image, opts query.Options) (*query.Result, error)
}

// Curator answers with the compact candidate window and no tag filter.
type Curator struct {
	searcher Searcher
	topK     int
	mu       sync.Mutex
	rnd      *rand.Rand
}

// Option configures a Curator.
type Option func(*Curator)

// WithRand fixes the phrase picker, for reproducible replies.
func WithRand(r *rand.Rand) Option {
	return func(c *Curator) { c.rnd = r }
}

// WithTopK overrides the candidate window; non-positive values are ignored.
func WithTopK(k int) Option {
	return func(c *Curator) {
		if k > 0 {
			c.topK = k
		}
	}
}

// New returns a Curator querying s.
func New(s Searcher, opts ...Option) *Curator {
	c := &Curator{
		searcher: s,
		topK:     query.CompactTopK,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Process searches for img. Recoverable query conditions are returned inside
// the Finding; other failures are returned as errors.
func (c *Curator) Process(ctx context.Context, img embedder.Image) (*Finding, error) {
	f := &Finding{Image: img.Name}
	if len(img.Data) == 0 {
		f.Err = embedder.ErrEmptyImage
		return f, nil
	}
	res, err := c.searcher.Search(ctx, img, query.Options{TopK: c.topK})
	if err != nil {
		if query.KindOf(err) == 0 {
			return nil, err
		}
		f.Err = err
		return f, nil
	}
	f.Matches = res.Matches
	f.DominantStyle = res.DominantStyle
	return f, nil
}

// Respond renders f as a reply.
func (c *Curator) Respond(f *Finding) string {
	if f == nil {
		return noImageReply
	}
	switch {
	case errors.Is(f.Err, embedder.ErrEmptyImage):
		return noImageReply
	case errors.Is(f.Err, query.ErrIndexUnavailable):
		return offlineReply
	case errors.Is(f.Err, query.ErrEmbeddingFailure):
		return fmt.Sprintf(troubleReplyFm, errors.Unwrap(f.Err))
	case f.Err != nil, len(f.Matches) == 0:
		return uniqueReply
	}
	best := f.Matches[0]
	return fmt.Sprintf(c.pickPhrase()+closestMatchFm, f.DominantStyle, best.Artist,
		strconv.FormatFloat(best.ScorePercent, 'f', -1, 64))
}

func (c *Curator) pickPhrase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stylePhrases[c.rnd.Intn(len(stylePhrases))]
}

var _ Processor = (*Curator)(nil)
