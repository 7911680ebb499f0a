// Package models holds the store-agnostic announcement and match records.
package models

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeLost  = "lost"
	TypeFound = "found"

	StatusActive = "active"
)

// Announcement is a lost or found report owned by the announcement service.
// The matching service only reads it and appends match back-references.
type Announcement struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId,omitempty"`
	Type         string     `json:"type"`
	Species      string     `json:"species,omitempty"`
	PetType      string     `json:"petType,omitempty"`
	Breed        string     `json:"breed,omitempty"`
	Location     *Location  `json:"location,omitempty"`
	LocationName string     `json:"locationName,omitempty"`
	LastSeenDate *time.Time `json:"lastSeenDate,omitempty"`
	Status       string     `json:"status"`
	Matches      []MatchRef `json:"matches,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Location accepts the three shapes announcements are stored with:
// a GeoJSON style [lng, lat] pair, {lat, lng} and {latitude, longitude}.
type Location struct {
	Type        string    `json:"type,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
}

// PointLocation builds the GeoJSON shape.
func PointLocation(lat, lng float64) *Location {
	return &Location{Type: "Point", Coordinates: []float64{lng, lat}}
}

// MatchRef is one entry of an announcement's back-reference set.
type MatchRef struct {
	AnnouncementID string `json:"announcementId"`
	Score          int    `json:"score"`
}

// OppositeType returns the announcement type a candidate must have.
func OppositeType(t string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case TypeLost:
		return TypeFound, true
	case TypeFound:
		return TypeLost, true
	default:
		return "", false
	}
}

// ErrNotFound is wrapped by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")
