// Package scoring aggregates factor analyzers into one confidence value and
// selects the best candidates.
package scoring

import (
	"github.com/PaulChelaru/petfinder-matching-service/internal/analyzer"
	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
)

const MaxConfidence = 100

// Outcome is the aggregated score of one pair.
type Outcome struct {
	Confidence          int
	SpeciesMatched      bool
	MatchFactors        []string
	Reasoning           []string
	Factors             []analyzer.Result
	DistanceKm          *float64
	TimeDifferenceHours *float64
}

// Engine runs the species gate followed by the weighted analyzers.
type Engine struct {
	gate      analyzer.Func
	analyzers []analyzer.Func
}

func NewEngine(vocab *analyzer.Vocabulary) *Engine {
	return &Engine{
		gate: analyzer.Species,
		analyzers: []analyzer.Func{
			analyzer.Breed(vocab),
			analyzer.Location,
			analyzer.Time,
		},
	}
}

// Score compares source with candidate. A species mismatch stops scoring
// with zero confidence.
func (e *Engine) Score(source, candidate features.Features) Outcome {
	gate := e.gate(source, candidate)
	out := Outcome{
		Reasoning: append([]string(nil), gate.Reasoning...),
		Factors:   []analyzer.Result{gate},
	}
	if !gate.Matched {
		return out
	}
	out.SpeciesMatched = true

	total := gate.Confidence
	seen := make(map[string]struct{}, 8)
	addFactors := func(tokens []string) {
		for _, tok := range tokens {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out.MatchFactors = append(out.MatchFactors, tok)
		}
	}
	addFactors(gate.MatchFactors)

	for _, fn := range e.analyzers {
		res := fn(source, candidate)
		out.Factors = append(out.Factors, res)
		total += res.Confidence
		addFactors(res.MatchFactors)
		out.Reasoning = append(out.Reasoning, res.Reasoning...)
		if res.DistanceKm != nil {
			out.DistanceKm = res.DistanceKm
		}
		if res.TimeDifferenceHours != nil {
			out.TimeDifferenceHours = res.TimeDifferenceHours
		}
	}

	out.Confidence = max(0, min(total, MaxConfidence))
	return out
}
