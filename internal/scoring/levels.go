package scoring

import (
	"fmt"
	"math"
)

func ConfidenceLevel(confidence int) string {
	switch {
	case confidence >= 90:
		return "very_high"
	case confidence >= 75:
		return "high"
	case confidence >= 60:
		return "medium"
	case confidence >= 45:
		return "low"
	default:
		return "very_low"
	}
}

// PriorityLevel ranks a match for review. An unknown distance counts as 0 km.
func PriorityLevel(confidence int, distanceKm *float64) string {
	km := 0.0
	if distanceKm != nil {
		km = *distanceKm
	}
	switch {
	case confidence >= 80 && km <= 10:
		return "urgent"
	case confidence >= 70 && km <= 25:
		return "high"
	case confidence >= 60:
		return "medium"
	default:
		return "low"
	}
}

// FormatDistance renders kilometres, switching to metres under 1 km.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fkm", km)
}

func FormatTimeDifference(hours float64) string {
	switch {
	case hours < 1:
		return fmt.Sprintf("%d minutes", int(math.Round(hours*60)))
	case hours < 24:
		return fmt.Sprintf("%d hours", int(math.Round(hours)))
	}
	days := int(math.Round(hours / 24))
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
