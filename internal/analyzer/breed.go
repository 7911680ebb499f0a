package analyzer

import (
	"fmt"
	"math"

	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
)

const fuzzyBreedWeight = 18

// Breed returns the breed analyzer bound to a vocabulary.
func Breed(vocab *Vocabulary) Func {
	return func(source, candidate features.Features) Result {
		return scoreBreed(vocab, source, candidate)
	}
}

func scoreBreed(vocab *Vocabulary, source, candidate features.Features) Result {
	res := Result{Factor: FactorBreed}
	if source.Breed == nil || candidate.Breed == nil {
		res.Reasoning = []string{"missing breed data"}
		return res
	}

	a, b := *source.Breed, *candidate.Breed
	if a == b {
		res.Confidence = BreedWeight
		res.MatchFactors = []string{"exact_breed"}
		res.Reasoning = []string{fmt.Sprintf("same breed (%s)", a)}
		return res
	}

	nameA, distA, okA := vocab.Resolve(a)
	nameB, distB, okB := vocab.Resolve(b)
	if !okA || !okB || nameA != nameB {
		res.Reasoning = []string{"different breeds"}
		return res
	}

	confidence := int(math.Round((1 - (distA+distB)/2) * fuzzyBreedWeight))
	res.Confidence = max(0, min(confidence, fuzzyBreedWeight))
	res.MatchFactors = []string{"fuzzy_breed"}
	res.Reasoning = []string{fmt.Sprintf("similar breed (%s)", nameA)}
	return res
}
