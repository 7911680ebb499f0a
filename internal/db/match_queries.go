package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
)

// CreateMatch inserts m unless a match for the same (lost, found) pair
// already exists. It reports whether a row was written.
func (p *Pool) CreateMatch(ctx context.Context, m models.Match) (bool, error) {
	if p == nil || p.gdb == nil {
		return false, fmt.Errorf("database pool is not initialized")
	}
	if err := m.Validate(); err != nil {
		return false, fmt.Errorf("invalid match: %w", err)
	}

	factors, err := json.Marshal(nonNil(m.MatchFactors))
	if err != nil {
		return false, fmt.Errorf("encode match factors: %w", err)
	}
	reasoning, err := json.Marshal(nonNil(m.Reasoning))
	if err != nil {
		return false, fmt.Errorf("encode reasoning: %w", err)
	}

	rec := MatchRecord{
		MatchID:             m.MatchID,
		LostAnnouncementID:  m.LostAnnouncementID,
		FoundAnnouncementID: m.FoundAnnouncementID,
		Confidence:          m.Confidence,
		Status:              m.Status,
		Distance:            m.Distance,
		TimeDifference:      m.TimeDifference,
		MatchFactors:        factors,
		Reasoning:           reasoning,
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}

	res := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lost_announcement_id"}, {Name: "found_announcement_id"}},
			DoNothing: true,
		}).
		Create(&rec)
	if res.Error != nil {
		return false, fmt.Errorf("insert match %s/%s: %w", m.LostAnnouncementID, m.FoundAnnouncementID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListMatches returns one page of matches, newest first, and the total count
// for the same filter.
func (p *Pool) ListMatches(ctx context.Context, opts models.MatchListOptions) (int64, []models.Match, error) {
	if opts.Limit <= 0 {
		return 0, nil, fmt.Errorf("limit must be > 0")
	}
	page := max(opts.Page, 1)

	const where = `
WHERE ($1 = '' OR m.lost_announcement_id = $1 OR m.found_announcement_id = $1)
  AND ($2 = '' OR m.status = $2)
  AND m.confidence >= $3`
	announcementID := strings.TrimSpace(opts.AnnouncementID)
	status := strings.ToLower(strings.TrimSpace(opts.Status))

	var total int64
	if err := p.QueryRow(ctx, `SELECT COUNT(*) FROM matches m`+where, announcementID, status, opts.MinConfidence).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count matches: %w", err)
	}

	q := `
SELECT
	m.match_id::text,
	m.lost_announcement_id,
	m.found_announcement_id,
	m.confidence,
	m.status,
	m.distance,
	m.time_difference,
	m.match_factors,
	m.reasoning,
	m.created_at,
	m.updated_at
FROM matches m` + where + `
ORDER BY m.created_at DESC, m.match_id DESC
LIMIT $4 OFFSET $5`

	rows, err := p.Query(ctx, q, announcementID, status, opts.MinConfidence, opts.Limit, (page-1)*opts.Limit)
	if err != nil {
		return 0, nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	items := make([]models.Match, 0, opts.Limit)
	for rows.Next() {
		var (
			m         models.Match
			factors   []byte
			reasoning []byte
		)
		if err := rows.Scan(
			&m.MatchID,
			&m.LostAnnouncementID,
			&m.FoundAnnouncementID,
			&m.Confidence,
			&m.Status,
			&m.Distance,
			&m.TimeDifference,
			&factors,
			&reasoning,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return 0, nil, fmt.Errorf("scan match: %w", err)
		}
		if len(factors) > 0 {
			if err := json.Unmarshal(factors, &m.MatchFactors); err != nil {
				return 0, nil, fmt.Errorf("decode match factors for %s: %w", m.MatchID, err)
			}
		}
		if len(reasoning) > 0 {
			if err := json.Unmarshal(reasoning, &m.Reasoning); err != nil {
				return 0, nil, fmt.Errorf("decode reasoning for %s: %w", m.MatchID, err)
			}
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate matches: %w", err)
	}

	return total, items, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
