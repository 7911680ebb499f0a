package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
)

const (
	DefaultMaxDistanceMeters = 50000
	DefaultDaysBefore        = 30
	DefaultDaysAfter         = 30
	DefaultLimit             = 20
)

// Options tunes candidate retrieval. Zero values select the defaults;
// negative day counts are treated as zero.
type Options struct {
	MaxDistanceMeters float64
	DaysBefore        int
	DaysAfter         int
	Limit             int
	SkipLocation      bool
	SkipTime          bool
	SkipBreed         bool
}

func (o Options) withDefaults() Options {
	if o.MaxDistanceMeters <= 0 {
		o.MaxDistanceMeters = DefaultMaxDistanceMeters
	}
	if o.DaysBefore == 0 {
		o.DaysBefore = DefaultDaysBefore
	}
	if o.DaysAfter == 0 {
		o.DaysAfter = DefaultDaysAfter
	}
	o.DaysBefore = max(o.DaysBefore, 0)
	o.DaysAfter = max(o.DaysAfter, 0)
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

// BuildCandidateFilter composes the retrieval filter for counterparts of
// source: opposite type, same species, active, and optionally near in space,
// time and breed.
func BuildCandidateFilter(source features.Features, opts Options) (Filter, error) {
	opposite, ok := models.OppositeType(source.Type)
	if !ok {
		return Filter{}, fmt.Errorf("announcement %s has unsupported type %q", source.ID, source.Type)
	}
	species := source.Species
	if species == "" {
		species = features.SpeciesUnknown
	}
	opts = opts.withDefaults()

	preds := []Predicate{
		Equals{Field: FieldType, Value: opposite},
		In{Field: FieldSpecies, Values: features.SpeciesSynonyms(species)},
		Equals{Field: FieldStatus, Value: models.StatusActive},
	}
	if source.ID != "" {
		preds = append(preds, NotEquals{Field: FieldID, Value: source.ID})
	}

	if source.Coordinates != nil && !opts.SkipLocation {
		preds = append(preds, WithinRadius{Center: *source.Coordinates, Meters: opts.MaxDistanceMeters})
	}

	if source.LastSeen != nil && !opts.SkipTime {
		day := 24 * time.Hour
		preds = append(preds, Between{
			Field: FieldLastSeen,
			From:  source.LastSeen.Add(-time.Duration(opts.DaysBefore) * day),
			To:    source.LastSeen.Add(time.Duration(opts.DaysAfter) * day),
		})
	}

	if source.Breed != nil && !opts.SkipBreed {
		if terms := breedTerms(*source.Breed); len(terms) > 0 {
			preds = append(preds, ContainsAny{Field: FieldBreed, Terms: terms})
		}
	}

	return Filter{Predicates: preds, Limit: opts.Limit}, nil
}

// breedTerms returns the whole normalized breed and, when it has more than
// one word, its first word as a looser fallback.
func breedTerms(breed string) []string {
	breed = strings.TrimSpace(breed)
	if breed == "" {
		return nil
	}
	terms := []string{breed}
	if fields := strings.Fields(breed); len(fields) > 1 {
		terms = append(terms, fields[0])
	}
	return terms
}
