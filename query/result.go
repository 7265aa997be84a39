package query

import (
	"math"

	"github.com/viant/visual-archive/record"
)

// Match is one ranked result.
type Match struct {
	record.Record
	Score        float64 `json:"score"`
	ScorePercent float64 `json:"score_percent"`
}

// Result is the outcome of a successful search.
type Result struct {
	// Matches are the candidates that passed the tag filter, best first.
	Matches []Match `json:"matches"`
	// DominantStyle is the most frequent tag among all retrieved candidates,
	// before filtering.
	DominantStyle string `json:"dominant_style"`
	// Candidates is how many entries the index returned before filtering.
	Candidates int `json:"candidates"`
}

// Best returns the top match.
func (r *Result) Best() (Match, bool) {
	if r == nil || len(r.Matches) == 0 {
		return Match{}, false
	}
	return r.Matches[0], true
}

// ScorePercent converts an inner-product score to a percentage rounded to two
// decimals, halves away from zero.
func ScorePercent(score float64) float64 {
	return math.Round(score*10000) / 100
}

// DominantStyle returns the most frequent tag in records, preferring the tag
// seen first when counts tie. It returns "" for no records.
func DominantStyle(records []record.Record) string {
	counts := make(map[string]int, len(records))
	best := 0
	for _, r := range records {
		counts[r.Tag]++
		if counts[r.Tag] > best {
			best = counts[r.Tag]
		}
	}
	for _, r := range records {
		if counts[r.Tag] == best {
			return r.Tag
		}
	}
	return ""
}
