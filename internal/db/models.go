package db

import (
	"encoding/json"
	"time"
)

// AnnouncementRecord maps announcements. The announcement service owns the
// rows; this service reads them and appends to matches.
type AnnouncementRecord struct {
	ID           string          `gorm:"column:id;type:text;primaryKey"`
	UserID       *string         `gorm:"column:user_id;type:text"`
	Type         string          `gorm:"column:type;type:text;not null"`
	Species      *string         `gorm:"column:species;type:text"`
	PetType      *string         `gorm:"column:pet_type;type:text"`
	Breed        *string         `gorm:"column:breed;type:text"`
	Location     json.RawMessage `gorm:"column:location;type:jsonb"`
	LocationName *string         `gorm:"column:location_name;type:text"`
	LastSeenDate *time.Time      `gorm:"column:last_seen_date;type:timestamptz"`
	Status       string          `gorm:"column:status;type:text;not null;default:active"`
	Matches      json.RawMessage `gorm:"column:matches;type:jsonb;not null;default:'[]'::jsonb"`
	CreatedAt    time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (AnnouncementRecord) TableName() string { return "announcements" }

// MatchRecord maps matches.
type MatchRecord struct {
	MatchID             string          `gorm:"column:match_id;type:uuid;primaryKey"`
	LostAnnouncementID  string          `gorm:"column:lost_announcement_id;type:text;not null"`
	FoundAnnouncementID string          `gorm:"column:found_announcement_id;type:text;not null"`
	Confidence          int             `gorm:"column:confidence;type:integer;not null"`
	Status              string          `gorm:"column:status;type:text;not null;default:pending"`
	Distance            *float64        `gorm:"column:distance;type:double precision"`
	TimeDifference      *float64        `gorm:"column:time_difference;type:double precision"`
	MatchFactors        json.RawMessage `gorm:"column:match_factors;type:jsonb;not null;default:'[]'::jsonb"`
	Reasoning           json.RawMessage `gorm:"column:reasoning;type:jsonb;not null;default:'[]'::jsonb"`
	CreatedAt           time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (MatchRecord) TableName() string { return "matches" }

func autoMigrateModels() []any {
	return []any{
		&AnnouncementRecord{},
		&MatchRecord{},
	}
}
