package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
	"github.com/PaulChelaru/petfinder-matching-service/internal/query"
)

const announcementColumns = `
	id,
	user_id,
	type,
	species,
	pet_type,
	breed,
	location,
	location_name,
	last_seen_date,
	status,
	matches,
	created_at,
	updated_at`

// FindAnnouncement loads one announcement. A missing row wraps
// models.ErrNotFound.
func (p *Pool) FindAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("announcement id is required")
	}

	rows, err := p.Query(ctx, `SELECT`+announcementColumns+`
FROM announcements
WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query announcement %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("read announcement %s: %w", id, err)
		}
		return nil, fmt.Errorf("announcement %s: %w", id, models.ErrNotFound)
	}
	a, err := scanAnnouncement(rows)
	if err != nil {
		return nil, fmt.Errorf("scan announcement %s: %w", id, err)
	}
	return a, nil
}

// FindCandidates returns the announcements matching f, oldest first, at most
// f.Limit of them.
func (p *Pool) FindCandidates(ctx context.Context, f query.Filter) ([]models.Announcement, error) {
	where, args, err := TranslateFilter(f)
	if err != nil {
		return nil, fmt.Errorf("translate candidate filter: %w", err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = query.DefaultLimit
	}
	args = append(args, limit)

	q := fmt.Sprintf(`SELECT%s
FROM announcements
WHERE %s
ORDER BY created_at ASC, id ASC
LIMIT $%d`, announcementColumns, where, len(args))

	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	out := make([]models.Announcement, 0, limit)
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// AppendMatchRefs adds refs to the announcement's matches set. Entries whose
// announcementId is already present are skipped, so replays are no-ops.
func (p *Pool) AppendMatchRefs(ctx context.Context, id string, refs []models.MatchRef, at time.Time) error {
	if len(refs) == 0 {
		return nil
	}
	payload, err := json.Marshal(dedupeRefs(refs))
	if err != nil {
		return fmt.Errorf("encode match refs: %w", err)
	}

	const q = `
UPDATE announcements AS a
SET matches = COALESCE(a.matches, '[]'::jsonb) || COALESCE((
		SELECT jsonb_agg(r.ref)
		FROM jsonb_array_elements($2::jsonb) AS r(ref)
		WHERE NOT EXISTS (
			SELECT 1
			FROM jsonb_array_elements(COALESCE(a.matches, '[]'::jsonb)) AS e(ref)
			WHERE e.ref->>'announcementId' = r.ref->>'announcementId'
		)
	), '[]'::jsonb),
	updated_at = $3
WHERE a.id = $1
`
	tag, err := p.Exec(ctx, q, id, string(payload), at.UTC())
	if err != nil {
		return fmt.Errorf("append match refs to %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("announcement %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func dedupeRefs(refs []models.MatchRef) []models.MatchRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]models.MatchRef, 0, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.AnnouncementID]; dup {
			continue
		}
		seen[ref.AnnouncementID] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func scanAnnouncement(rows *Rows) (*models.Announcement, error) {
	var (
		a            models.Announcement
		userID       *string
		species      *string
		petType      *string
		breed        *string
		location     []byte
		locationName *string
		matches      []byte
	)
	if err := rows.Scan(
		&a.ID,
		&userID,
		&a.Type,
		&species,
		&petType,
		&breed,
		&location,
		&locationName,
		&a.LastSeenDate,
		&a.Status,
		&matches,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	a.UserID = deref(userID)
	a.Species = deref(species)
	a.PetType = deref(petType)
	a.Breed = deref(breed)
	a.LocationName = deref(locationName)

	// Unparseable locations or back-references degrade to "absent" so one
	// bad row cannot fail the whole candidate query.
	if len(location) > 0 {
		var loc models.Location
		if err := json.Unmarshal(location, &loc); err == nil {
			a.Location = &loc
		}
	}
	if len(matches) > 0 {
		_ = json.Unmarshal(matches, &a.Matches)
	}
	return &a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
