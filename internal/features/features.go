// Package features normalizes raw announcements into the canonical shape the
// analyzers score. Fields that cannot be normalized are left nil.
package features

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
)

const (
	SpeciesDog     = "câine"
	SpeciesCat     = "pisică"
	SpeciesUnknown = "unknown"
)

var ErrInvalidAnnouncement = errors.New("invalid announcement")

var speciesSynonyms = map[string][]string{
	SpeciesDog: {"câine", "caine", "câini", "caini", "dog", "dogs", "puppy"},
	SpeciesCat: {"pisică", "pisica", "pisici", "cat", "cats", "kitten"},
}

var speciesLookup = func() map[string]string {
	out := make(map[string]string)
	for canonical, words := range speciesSynonyms {
		for _, w := range words {
			out[w] = canonical
		}
	}
	return out
}()

var breedSeparators = regexp.MustCompile(`[-_\s]+`)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

type Features struct {
	ID          string
	UserID      string
	Type        string
	Species     string
	Breed       *string
	Coordinates *Point
	LastSeen    *time.Time
}

// Extract normalizes a. Only a missing id or a type other than lost/found is
// an error; every other defect degrades to a nil field.
func Extract(a models.Announcement) (Features, error) {
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return Features{}, fmt.Errorf("%w: missing id", ErrInvalidAnnouncement)
	}
	typ := strings.ToLower(strings.TrimSpace(a.Type))
	if typ != models.TypeLost && typ != models.TypeFound {
		return Features{}, fmt.Errorf("%w: announcement %s has type %q", ErrInvalidAnnouncement, id, a.Type)
	}

	species := a.Species
	if strings.TrimSpace(species) == "" {
		species = a.PetType
	}

	f := Features{
		ID:          id,
		UserID:      strings.TrimSpace(a.UserID),
		Type:        typ,
		Species:     CanonicalSpecies(species),
		Coordinates: ExtractCoordinates(a.Location),
	}
	if breed := NormalizeBreed(a.Breed); breed != "" {
		f.Breed = &breed
	}
	if a.LastSeenDate != nil && !a.LastSeenDate.IsZero() {
		ts := a.LastSeenDate.UTC()
		f.LastSeen = &ts
	}
	return f, nil
}

// CanonicalSpecies maps a species word in English or Romanian onto one of the
// two canonical tokens, or SpeciesUnknown.
func CanonicalSpecies(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := speciesLookup[key]; ok {
		return canonical
	}
	return SpeciesUnknown
}

// SpeciesSynonyms lists every stored spelling of a canonical species,
// canonical token first. Unknown species only match themselves.
func SpeciesSynonyms(canonical string) []string {
	words, ok := speciesSynonyms[canonical]
	if !ok {
		return []string{canonical}
	}
	out := make([]string, len(words))
	copy(out, words)
	return out
}

// NormalizeBreed lower-cases and trims raw and collapses separator runs.
func NormalizeBreed(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = breedSeparators.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func ExtractCoordinates(loc *models.Location) *Point {
	if loc == nil {
		return nil
	}
	if len(loc.Coordinates) == 2 {
		return validPoint(loc.Coordinates[1], loc.Coordinates[0])
	}
	if loc.Lat != nil && loc.Lng != nil {
		return validPoint(*loc.Lat, *loc.Lng)
	}
	if loc.Latitude != nil && loc.Longitude != nil {
		return validPoint(*loc.Latitude, *loc.Longitude)
	}
	return nil
}

func validPoint(lat, lng float64) *Point {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	return &Point{Lat: lat, Lng: lng}
}
