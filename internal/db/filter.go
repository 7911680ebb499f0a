package db

import (
	"fmt"
	"strings"

	"github.com/PaulChelaru/petfinder-matching-service/internal/query"
)

const earthRadiusMeters = 6371000

// Locations are stored in one of three JSON shapes; these expressions pull
// latitude and longitude out of whichever is present. Non-numeric values read
// as NULL so one bad row only drops out of the radius filter.
var (
	locationLatSQL = coalesceNumbers(`location->'coordinates'->1`, `location->'lat'`, `location->'latitude'`)
	locationLngSQL = coalesceNumbers(`location->'coordinates'->0`, `location->'lng'`, `location->'longitude'`)
)

func numericJSON(path string) string {
	return fmt.Sprintf("CASE WHEN jsonb_typeof(%s) = 'number' THEN (%s)::text::double precision END", path, path)
}

func coalesceNumbers(paths ...string) string {
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		parts = append(parts, numericJSON(p))
	}
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}

var filterColumns = map[query.Field]string{
	query.FieldID:       "id",
	query.FieldType:     "lower(type)",
	query.FieldSpecies:  "lower(btrim(COALESCE(NULLIF(btrim(species), ''), pet_type, '')))",
	query.FieldStatus:   "lower(status)",
	query.FieldBreed:    "breed",
	query.FieldLastSeen: "last_seen_date",
}

type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// TranslateFilter renders the predicates of f as a WHERE clause body with
// positional arguments starting at $1. An empty filter renders TRUE.
func TranslateFilter(f query.Filter) (string, []any, error) {
	b := &sqlBuilder{}
	clauses := make([]string, 0, len(f.Predicates))
	for _, pred := range f.Predicates {
		clause, err := b.predicate(pred)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(clauses, "\n  AND "), b.args, nil
}

func (b *sqlBuilder) predicate(pred query.Predicate) (string, error) {
	switch p := pred.(type) {
	case query.Equals:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", col, b.bind(p.Value)), nil

	case query.NotEquals:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s <> %s", col, b.bind(p.Value)), nil

	case query.In:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		if len(p.Values) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, 0, len(p.Values))
		for _, v := range p.Values {
			placeholders = append(placeholders, b.bind(strings.ToLower(v)))
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), nil

	case query.WithinRadius:
		lat := b.bind(p.Center.Lat)
		lng := b.bind(p.Center.Lng)
		meters := b.bind(p.Meters)
		return fmt.Sprintf(
			"(2 * %d * asin(sqrt(power(sin(radians(%s - %s) / 2), 2) + cos(radians(%s)) * cos(radians(%s)) * power(sin(radians(%s - %s) / 2), 2)))) <= %s",
			earthRadiusMeters,
			locationLatSQL, lat,
			lat, locationLatSQL,
			locationLngSQL, lng,
			meters,
		), nil

	case query.Between:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, b.bind(p.From.UTC()), b.bind(p.To.UTC())), nil

	case query.ContainsAny:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		if len(p.Terms) == 0 {
			return "TRUE", nil
		}
		ors := make([]string, 0, len(p.Terms))
		for _, term := range p.Terms {
			ors = append(ors, fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, col, b.bind("%"+escapeLike(term)+"%")))
		}
		return "(" + strings.Join(ors, " OR ") + ")", nil

	default:
		return "", fmt.Errorf("unsupported predicate %T", pred)
	}
}

func column(field query.Field) (string, error) {
	col, ok := filterColumns[field]
	if !ok {
		return "", fmt.Errorf("unsupported filter field %q", field)
	}
	return col, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
