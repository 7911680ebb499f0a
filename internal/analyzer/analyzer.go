// Package analyzer scores one similarity factor of an announcement pair.
// Analyzers are pure functions of two feature sets.
package analyzer

import "github.com/PaulChelaru/petfinder-matching-service/internal/features"

const (
	FactorSpecies  = "species"
	FactorBreed    = "breed"
	FactorLocation = "location"
	FactorTime     = "time"
)

const (
	SpeciesWeight  = 40
	BreedWeight    = 20
	LocationWeight = 25
	TimeWeight     = 15
)

// Result is one analyzer's contribution. DistanceKm and TimeDifferenceHours
// are set by the location and time analyzers when both sides are known.
type Result struct {
	Factor              string
	Matched             bool
	Confidence          int
	MatchFactors        []string
	Reasoning           []string
	DistanceKm          *float64
	TimeDifferenceHours *float64
}

// Func scores a source announcement against a candidate.
type Func func(source, candidate features.Features) Result
