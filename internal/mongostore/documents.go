package mongostore

import (
	"time"

	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
)

// announcementDoc mirrors what the announcement service writes. Ids may be
// strings or ObjectIDs depending on who created the document.
type announcementDoc struct {
	ID           any           `bson:"_id"`
	UserID       any           `bson:"userId,omitempty"`
	Type         string        `bson:"type"`
	Species      string        `bson:"species,omitempty"`
	PetType      string        `bson:"petType,omitempty"`
	Breed        string        `bson:"breed,omitempty"`
	Location     *locationDoc  `bson:"location,omitempty"`
	LocationName string        `bson:"locationName,omitempty"`
	LastSeenDate *time.Time    `bson:"lastSeenDate,omitempty"`
	Status       string        `bson:"status"`
	Matches      []matchRefDoc `bson:"matches,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

type locationDoc struct {
	Type        string    `bson:"type,omitempty"`
	Coordinates []float64 `bson:"coordinates,omitempty"`
	Lat         *float64  `bson:"lat,omitempty"`
	Lng         *float64  `bson:"lng,omitempty"`
	Latitude    *float64  `bson:"latitude,omitempty"`
	Longitude   *float64  `bson:"longitude,omitempty"`
}

type matchRefDoc struct {
	AnnouncementID string `bson:"announcementId"`
	Score          int    `bson:"score"`
}

func (d announcementDoc) toModel() models.Announcement {
	a := models.Announcement{
		ID:           idString(d.ID),
		UserID:       idString(d.UserID),
		Type:         d.Type,
		Species:      d.Species,
		PetType:      d.PetType,
		Breed:        d.Breed,
		LocationName: d.LocationName,
		LastSeenDate: d.LastSeenDate,
		Status:       d.Status,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.Location != nil {
		a.Location = &models.Location{
			Type:        d.Location.Type,
			Coordinates: d.Location.Coordinates,
			Lat:         d.Location.Lat,
			Lng:         d.Location.Lng,
			Latitude:    d.Location.Latitude,
			Longitude:   d.Location.Longitude,
		}
	}
	for _, ref := range d.Matches {
		a.Matches = append(a.Matches, models.MatchRef(ref))
	}
	return a
}

type matchDoc struct {
	MatchID             string    `bson:"matchId"`
	LostAnnouncementID  string    `bson:"lostAnnouncementId"`
	FoundAnnouncementID string    `bson:"foundAnnouncementId"`
	Confidence          int       `bson:"confidence"`
	Status              string    `bson:"status"`
	Distance            *float64  `bson:"distance,omitempty"`
	TimeDifference      *float64  `bson:"timeDifference,omitempty"`
	MatchFactors        []string  `bson:"matchFactors"`
	Reasoning           []string  `bson:"reasoning"`
	CreatedAt           time.Time `bson:"createdAt"`
	UpdatedAt           time.Time `bson:"updatedAt"`
}

func newMatchDoc(m models.Match) matchDoc {
	return matchDoc{
		MatchID:             m.MatchID,
		LostAnnouncementID:  m.LostAnnouncementID,
		FoundAnnouncementID: m.FoundAnnouncementID,
		Confidence:          m.Confidence,
		Status:              m.Status,
		Distance:            m.Distance,
		TimeDifference:      m.TimeDifference,
		MatchFactors:        nonNil(m.MatchFactors),
		Reasoning:           nonNil(m.Reasoning),
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

func (d matchDoc) toModel() models.Match {
	return models.Match{
		MatchID:             d.MatchID,
		LostAnnouncementID:  d.LostAnnouncementID,
		FoundAnnouncementID: d.FoundAnnouncementID,
		Confidence:          d.Confidence,
		Status:              d.Status,
		Distance:            d.Distance,
		TimeDifference:      d.TimeDifference,
		MatchFactors:        d.MatchFactors,
		Reasoning:           d.Reasoning,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
