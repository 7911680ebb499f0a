package mongostore

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
	"github.com/PaulChelaru/petfinder-matching-service/internal/query"
)

func TestTranslateEmptyFilter(t *testing.T) {
	t.Parallel()

	got, err := TranslateFilter(query.Filter{})
	if err != nil {
		t.Fatalf("TranslateFilter failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty document, got %v", got)
	}
}

func TestTranslateSinglePredicateIsNotWrapped(t *testing.T) {
	t.Parallel()

	got, err := TranslateFilter(query.Filter{Predicates: []query.Predicate{
		query.Equals{Field: query.FieldStatus, Value: "active"},
	}})
	if err != nil {
		t.Fatalf("TranslateFilter failed: %v", err)
	}
	want := bson.D{{Key: "status", Value: primitive.Regex{Pattern: `^\s*active\s*$`, Options: "i"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateCandidateFilter(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 60)
	oid := primitive.NewObjectID()

	got, err := TranslateFilter(query.Filter{
		Limit: 20,
		Predicates: []query.Predicate{
			query.Equals{Field: query.FieldType, Value: "found"},
			query.In{Field: query.FieldSpecies, Values: []string{"câine", "dog"}},
			query.NotEquals{Field: query.FieldID, Value: oid.Hex()},
			query.WithinRadius{Center: features.Point{Lat: 44.4, Lng: 26.1}, Meters: 63781},
			query.Between{Field: query.FieldLastSeen, From: from, To: to},
			query.ContainsAny{Field: query.FieldBreed, Terms: []string{"golden retriever", "golden"}},
		},
	})
	if err != nil {
		t.Fatalf("TranslateFilter failed: %v", err)
	}

	species := bson.A{
		primitive.Regex{Pattern: `^\s*câine\s*$`, Options: "i"},
		primitive.Regex{Pattern: `^\s*dog\s*$`, Options: "i"},
	}
	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "type", Value: primitive.Regex{Pattern: `^\s*found\s*$`, Options: "i"}}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "species", Value: bson.D{{Key: "$in", Value: species}}}},
			bson.D{
				{Key: "species", Value: bson.D{{Key: "$in", Value: bson.A{nil, ""}}}},
				{Key: "petType", Value: bson.D{{Key: "$in", Value: species}}},
			},
		}}},
		bson.D{{Key: "_id", Value: bson.D{{Key: "$nin", Value: bson.A{oid.Hex(), oid}}}}},
		bson.D{{Key: "location.coordinates", Value: bson.D{{Key: "$geoWithin", Value: bson.D{
			{Key: "$centerSphere", Value: bson.A{bson.A{26.1, 44.4}, 63781.0 / earthRadiusMeters}},
		}}}}},
		bson.D{{Key: "lastSeenDate", Value: bson.D{{Key: "$gte", Value: from}, {Key: "$lte", Value: to}}}},
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "breed", Value: primitive.Regex{Pattern: "golden retriever", Options: "i"}}},
			bson.D{{Key: "breed", Value: primitive.Regex{Pattern: "golden", Options: "i"}}},
		}}},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateQuotesRegexMetacharacters(t *testing.T) {
	t.Parallel()

	got, err := TranslateFilter(query.Filter{Predicates: []query.Predicate{
		query.ContainsAny{Field: query.FieldBreed, Terms: []string{"st. bernard (mix)"}},
	}})
	if err != nil {
		t.Fatalf("TranslateFilter failed: %v", err)
	}
	want := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "breed", Value: primitive.Regex{Pattern: `st\. bernard \(mix\)`, Options: "i"}}},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestPlainStringIDsAreNotParsedAsObjectIDs(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff(bson.A{"lost-1"}, idValues("lost-1")); diff != "" {
		t.Fatalf("idValues mismatch (-want +got):\n%s", diff)
	}
}

type bogusPredicate struct{ query.Equals }

func TestTranslateRejectsUnknownInput(t *testing.T) {
	t.Parallel()

	if _, err := TranslateFilter(query.Filter{Predicates: []query.Predicate{query.Equals{Field: "colour", Value: "red"}}}); err == nil {
		t.Fatalf("expected unknown field to fail")
	}
	if _, err := TranslateFilter(query.Filter{Predicates: []query.Predicate{bogusPredicate{}}}); err == nil {
		t.Fatalf("expected unknown predicate type to fail")
	}
}

func TestAnnouncementDocToModel(t *testing.T) {
	t.Parallel()

	oid := primitive.NewObjectID()
	lat, lng := 44.43, 26.10
	doc := announcementDoc{
		ID:       oid,
		UserID:   "user-1",
		Type:     "lost",
		PetType:  "Dog",
		Location: &locationDoc{Lat: &lat, Lng: &lng},
		Status:   "active",
		Matches:  []matchRefDoc{{AnnouncementID: "found-1", Score: 88}},
	}

	got := doc.toModel()
	if got.ID != oid.Hex() {
		t.Fatalf("expected hex id %s, got %s", oid.Hex(), got.ID)
	}
	if got.Location == nil || got.Location.Lat == nil || *got.Location.Lat != lat {
		t.Fatalf("expected lat/lng location to survive, got %+v", got.Location)
	}
	if diff := cmp.Diff([]models.MatchRef{{AnnouncementID: "found-1", Score: 88}}, got.Matches); diff != "" {
		t.Fatalf("matches mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchListFilter(t *testing.T) {
	t.Parallel()

	got := matchListFilter(models.MatchListOptions{AnnouncementID: " a-1 ", Status: "Pending", MinConfidence: 60})
	want := bson.D{
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "lostAnnouncementId", Value: "a-1"}},
			bson.D{{Key: "foundAnnouncementId", Value: "a-1"}},
		}},
		{Key: "status", Value: "pending"},
		{Key: "confidence", Value: bson.D{{Key: "$gte", Value: 60}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
	if len(matchListFilter(models.MatchListOptions{})) != 0 {
		t.Fatalf("expected empty options to produce an empty filter")
	}
}
