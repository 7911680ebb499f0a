package mongostore

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/PaulChelaru/petfinder-matching-service/internal/query"
)

// $centerSphere takes its radius in radians of a sphere this size.
const earthRadiusMeters = 6378100

var filterFields = map[query.Field]string{
	query.FieldID:       "_id",
	query.FieldType:     "type",
	query.FieldStatus:   "status",
	query.FieldBreed:    "breed",
	query.FieldLastSeen: "lastSeenDate",
}

// TranslateFilter renders f as a find filter. Several predicates are
// combined under $and; an empty filter renders an empty document.
func TranslateFilter(f query.Filter) (bson.D, error) {
	parts := make(bson.A, 0, len(f.Predicates))
	for _, pred := range f.Predicates {
		doc, err := predicate(pred)
		if err != nil {
			return nil, err
		}
		parts = append(parts, doc)
	}
	switch len(parts) {
	case 0:
		return bson.D{}, nil
	case 1:
		return parts[0].(bson.D), nil
	default:
		return bson.D{{Key: "$and", Value: parts}}, nil
	}
}

func predicate(pred query.Predicate) (bson.D, error) {
	switch p := pred.(type) {
	case query.Equals:
		if p.Field == query.FieldID {
			return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: idValues(p.Value)}}}}, nil
		}
		field, err := fieldName(p.Field)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: field, Value: exactFold(p.Value)}}, nil

	case query.NotEquals:
		if p.Field == query.FieldID {
			return bson.D{{Key: "_id", Value: bson.D{{Key: "$nin", Value: idValues(p.Value)}}}}, nil
		}
		field, err := fieldName(p.Field)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: field, Value: bson.D{{Key: "$not", Value: exactFold(p.Value)}}}}, nil

	case query.In:
		patterns := make(bson.A, 0, len(p.Values))
		for _, v := range p.Values {
			patterns = append(patterns, exactFold(v))
		}
		if p.Field == query.FieldSpecies {
			// Older announcements only carry petType.
			return bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "species", Value: bson.D{{Key: "$in", Value: patterns}}}},
				bson.D{
					{Key: "species", Value: bson.D{{Key: "$in", Value: bson.A{nil, ""}}}},
					{Key: "petType", Value: bson.D{{Key: "$in", Value: patterns}}},
				},
			}}}, nil
		}
		field, err := fieldName(p.Field)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: field, Value: bson.D{{Key: "$in", Value: patterns}}}}, nil

	case query.WithinRadius:
		return bson.D{{Key: "location.coordinates", Value: bson.D{{Key: "$geoWithin", Value: bson.D{
			{Key: "$centerSphere", Value: bson.A{
				bson.A{p.Center.Lng, p.Center.Lat},
				p.Meters / earthRadiusMeters,
			}},
		}}}}}, nil

	case query.Between:
		field, err := fieldName(p.Field)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: field, Value: bson.D{
			{Key: "$gte", Value: p.From.UTC()},
			{Key: "$lte", Value: p.To.UTC()},
		}}}, nil

	case query.ContainsAny:
		field, err := fieldName(p.Field)
		if err != nil {
			return nil, err
		}
		if len(p.Terms) == 0 {
			return bson.D{}, nil
		}
		ors := make(bson.A, 0, len(p.Terms))
		for _, term := range p.Terms {
			ors = append(ors, bson.D{{Key: field, Value: primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}}})
		}
		return bson.D{{Key: "$or", Value: ors}}, nil

	default:
		return nil, fmt.Errorf("unsupported predicate %T", pred)
	}
}

func fieldName(field query.Field) (string, error) {
	name, ok := filterFields[field]
	if !ok {
		return "", fmt.Errorf("unsupported filter field %q", field)
	}
	return name, nil
}

// exactFold matches the whole value ignoring case and surrounding blanks.
func exactFold(v string) primitive.Regex {
	return primitive.Regex{
		Pattern: `^\s*` + regexp.QuoteMeta(strings.TrimSpace(v)) + `\s*$`,
		Options: "i",
	}
}

// idValues lists the forms an id may be stored under: the raw string and,
// when it parses as one, an ObjectID.
func idValues(id string) bson.A {
	out := bson.A{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		out = append(out, oid)
	}
	return out
}
