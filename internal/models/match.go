package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	MatchStatusPending   = "pending"
	MatchStatusConfirmed = "confirmed"
	MatchStatusRejected  = "rejected"
)

// Match links one lost and one found announcement. At most one exists per
// (lost, found) pair.
type Match struct {
	MatchID             string    `json:"matchId"`
	LostAnnouncementID  string    `json:"lostAnnouncementId"`
	FoundAnnouncementID string    `json:"foundAnnouncementId"`
	Confidence          int       `json:"confidence"`
	Status              string    `json:"status"`
	Distance            *float64  `json:"distance,omitempty"`
	TimeDifference      *float64  `json:"timeDifference,omitempty"`
	MatchFactors        []string  `json:"matchFactors,omitempty"`
	Reasoning           []string  `json:"reasoning,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// MatchListOptions filters match listings. Empty fields do not filter.
type MatchListOptions struct {
	AnnouncementID string
	Status         string
	MinConfidence  int
	Page           int
	Limit          int
}

// ValidMatchStatus reports whether s is a known review status.
func ValidMatchStatus(s string) bool {
	switch s {
	case MatchStatusPending, MatchStatusConfirmed, MatchStatusRejected:
		return true
	default:
		return false
	}
}

// ResolveRoles orders a pair into (lost, found) using the source's type.
func ResolveRoles(sourceID, sourceType, candidateID string) (lostID, foundID string, err error) {
	switch strings.ToLower(strings.TrimSpace(sourceType)) {
	case TypeLost:
		return sourceID, candidateID, nil
	case TypeFound:
		return candidateID, sourceID, nil
	default:
		return "", "", fmt.Errorf("announcement %s has unsupported type %q", sourceID, sourceType)
	}
}

// Validate checks the invariants every persisted match must satisfy.
func (m Match) Validate() error {
	if strings.TrimSpace(m.MatchID) == "" {
		return fmt.Errorf("matchId is required")
	}
	if strings.TrimSpace(m.LostAnnouncementID) == "" || strings.TrimSpace(m.FoundAnnouncementID) == "" {
		return fmt.Errorf("both announcement ids are required")
	}
	if m.LostAnnouncementID == m.FoundAnnouncementID {
		return fmt.Errorf("an announcement cannot match itself")
	}
	if m.Confidence < 0 || m.Confidence > 100 {
		return fmt.Errorf("confidence %d out of range [0, 100]", m.Confidence)
	}
	if !ValidMatchStatus(m.Status) {
		return fmt.Errorf("invalid status %q", m.Status)
	}
	if m.Distance != nil && *m.Distance < 0 {
		return fmt.Errorf("distance must be >= 0")
	}
	if m.TimeDifference != nil && *m.TimeDifference < 0 {
		return fmt.Errorf("timeDifference must be >= 0")
	}
	return nil
}
