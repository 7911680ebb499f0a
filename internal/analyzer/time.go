package analyzer

import (
	"fmt"
	"math"

	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
)

// Time scores how close the two last-seen timestamps are.
func Time(source, candidate features.Features) Result {
	res := Result{Factor: FactorTime}
	if source.LastSeen == nil || candidate.LastSeen == nil {
		res.Reasoning = []string{"missing time data"}
		return res
	}

	hours := math.Abs(candidate.LastSeen.Sub(*source.LastSeen).Hours())
	rounded := math.Round(hours*100) / 100
	res.TimeDifferenceHours = &rounded

	confidence, factor := TimeBand(hours)
	res.Confidence = confidence
	if factor != "" {
		res.MatchFactors = []string{factor}
	}
	res.Reasoning = []string{fmt.Sprintf("%.1f hours apart", hours)}
	return res
}

// TimeBand maps an hour difference onto its confidence band.
func TimeBand(hours float64) (int, string) {
	switch {
	case hours < 24:
		return 15, "time_very_close"
	case hours < 72:
		return 12, "time_close"
	case hours < 168:
		return 8, "time_moderate"
	default:
		return 0, ""
	}
}
