package scoring

import (
	"sort"

	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
)

const (
	DefaultMinConfidence = 30
	DefaultTopN          = 4
)

// Scored pairs a candidate with its outcome.
type Scored struct {
	Candidate features.Features
	Outcome   Outcome
}

// Select keeps candidates at or above minConfidence, ordered by descending
// confidence, at most topN of them. Equal scores keep retrieval order.
func Select(scored []Scored, minConfidence, topN int) []Scored {
	if topN <= 0 {
		return nil
	}

	out := make([]Scored, 0, len(scored))
	for _, s := range scored {
		if !s.Outcome.SpeciesMatched || s.Outcome.Confidence < minConfidence {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Outcome.Confidence > out[j].Outcome.Confidence
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
