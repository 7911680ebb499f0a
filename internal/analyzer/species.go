package analyzer

import "github.com/PaulChelaru/petfinder-matching-service/internal/features"

// Species is the gate: a pair only matches when both canonical species are
// equal. Two unknown species count as equal.
func Species(source, candidate features.Features) Result {
	res := Result{Factor: FactorSpecies}
	switch {
	case source.Species != candidate.Species:
		res.Reasoning = []string{"different species"}
	default:
		res.Matched = true
		res.Confidence = SpeciesWeight
		res.MatchFactors = []string{"species_match"}
		res.Reasoning = []string{"same species"}
	}
	return res
}
