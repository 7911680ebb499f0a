package analyzer

import (
	"fmt"
	"math"

	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
)

const earthRadiusKm = 6371.0

type distanceBand struct {
	maxKm      float64
	confidence int
	factor     string
}

var distanceBands = []distanceBand{
	{maxKm: 1, confidence: 25, factor: "very_close"},
	{maxKm: 5, confidence: 20, factor: "close"},
	{maxKm: 15, confidence: 15, factor: "same_area"},
	{maxKm: 50, confidence: 5, factor: "same_city"},
}

// Location scores the great-circle distance between the two announcements.
func Location(source, candidate features.Features) Result {
	res := Result{Factor: FactorLocation}
	if source.Coordinates == nil || candidate.Coordinates == nil {
		res.Reasoning = []string{"missing location data"}
		return res
	}

	km := HaversineKm(*source.Coordinates, *candidate.Coordinates)
	rounded := math.Round(km*1000) / 1000
	res.DistanceKm = &rounded

	confidence, factor := LocationBand(km)
	res.Confidence = confidence
	res.MatchFactors = []string{factor}
	res.Reasoning = []string{fmt.Sprintf("%.2f km apart", km)}
	return res
}

// LocationBand maps a distance onto its confidence band.
func LocationBand(km float64) (int, string) {
	for _, band := range distanceBands {
		if km <= band.maxKm {
			return band.confidence, band.factor
		}
	}
	return 0, "far"
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b features.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}
