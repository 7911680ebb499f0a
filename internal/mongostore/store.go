// Package mongostore reads announcements from and writes matches to the
// MongoDB database shared with the announcement service.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
	"github.com/PaulChelaru/petfinder-matching-service/internal/query"
)

const (
	announcementsCollection = "announcements"
	matchesCollection       = "matches"
)

type Store struct {
	client        *mongo.Client
	announcements *mongo.Collection
	matches       *mongo.Collection
	logger        zerolog.Logger
}

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database string, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if strings.TrimSpace(database) == "" {
		return nil, fmt.Errorf("mongodb database is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:        client,
		announcements: db.Collection(announcementsCollection),
		matches:       db.Collection(matchesCollection),
		logger:        logger.With().Str("component", "mongostore").Logger(),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("mongodb store is not initialized")
	}
	return s.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes the matches collection relies on. The
// announcements collection belongs to the announcement service and is left
// alone.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.matches.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "lostAnnouncementId", Value: 1}, {Key: "foundAnnouncementId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("matches_lost_found_uidx"),
		},
		{
			Keys:    bson.D{{Key: "matchId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("matches_match_id_uidx"),
		},
		{
			Keys:    bson.D{{Key: "foundAnnouncementId", Value: 1}},
			Options: options.Index().SetName("matches_found_idx"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("matches_created_at_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("create match indexes: %w", err)
	}
	return nil
}

// FindAnnouncement loads one announcement. A missing document wraps
// models.ErrNotFound.
func (s *Store) FindAnnouncement(ctx context.Context, id string) (*models.Announcement, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("announcement id is required")
	}

	var doc announcementDoc
	err := s.announcements.FindOne(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: idValues(id)}}}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("announcement %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find announcement %s: %w", id, err)
	}
	a := doc.toModel()
	return &a, nil
}

// FindCandidates returns the announcements matching f, oldest first, at most
// f.Limit of them. Documents that do not decode are skipped.
func (s *Store) FindCandidates(ctx context.Context, f query.Filter) ([]models.Announcement, error) {
	filter, err := TranslateFilter(f)
	if err != nil {
		return nil, fmt.Errorf("translate candidate filter: %w", err)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = query.DefaultLimit
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.announcements.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]models.Announcement, 0, limit)
	for cur.Next(ctx) {
		var doc announcementDoc
		if err := cur.Decode(&doc); err != nil {
			s.logger.Warn().Err(err).Str("raw_id", fmt.Sprint(cur.Current.Lookup("_id"))).Msg("skip undecodable candidate")
			continue
		}
		out = append(out, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// AppendMatchRefs pushes each ref whose announcementId is not yet present.
func (s *Store) AppendMatchRefs(ctx context.Context, id string, refs []models.MatchRef, at time.Time) error {
	if len(refs) == 0 {
		return nil
	}

	matched := false
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref.AnnouncementID]; dup {
			continue
		}
		seen[ref.AnnouncementID] = struct{}{}

		filter := bson.D{
			{Key: "_id", Value: bson.D{{Key: "$in", Value: idValues(id)}}},
			{Key: "matches.announcementId", Value: bson.D{{Key: "$ne", Value: ref.AnnouncementID}}},
		}
		update := bson.D{
			{Key: "$push", Value: bson.D{{Key: "matches", Value: matchRefDoc(ref)}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: at.UTC()}}},
		}
		res, err := s.announcements.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("append match ref %s to %s: %w", ref.AnnouncementID, id, err)
		}
		if res.MatchedCount > 0 {
			matched = true
		}
	}
	if matched {
		return nil
	}

	// Nothing was pushed: either every ref was already present or the
	// announcement is gone.
	n, err := s.announcements.CountDocuments(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: idValues(id)}}}})
	if err != nil {
		return fmt.Errorf("count announcement %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("announcement %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// CreateMatch inserts m unless the (lost, found) pair already exists. It
// reports whether a document was written.
func (s *Store) CreateMatch(ctx context.Context, m models.Match) (bool, error) {
	if err := m.Validate(); err != nil {
		return false, fmt.Errorf("invalid match: %w", err)
	}
	_, err := s.matches.InsertOne(ctx, newMatchDoc(m))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert match %s/%s: %w", m.LostAnnouncementID, m.FoundAnnouncementID, err)
	}
	return true, nil
}

// ListMatches returns one page of matches, newest first, and the total count
// for the same filter.
func (s *Store) ListMatches(ctx context.Context, opts models.MatchListOptions) (int64, []models.Match, error) {
	if opts.Limit <= 0 {
		return 0, nil, fmt.Errorf("limit must be > 0")
	}
	page := max(opts.Page, 1)
	filter := matchListFilter(opts)

	total, err := s.matches.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, fmt.Errorf("count matches: %w", err)
	}

	find := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "matchId", Value: -1}}).
		SetSkip(int64((page - 1) * opts.Limit)).
		SetLimit(int64(opts.Limit))
	cur, err := s.matches.Find(ctx, filter, find)
	if err != nil {
		return 0, nil, fmt.Errorf("find matches: %w", err)
	}
	var docs []matchDoc
	if err := cur.All(ctx, &docs); err != nil {
		return 0, nil, fmt.Errorf("decode matches: %w", err)
	}

	items := make([]models.Match, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.toModel())
	}
	return total, items, nil
}

func matchListFilter(opts models.MatchListOptions) bson.D {
	filter := bson.D{}
	if id := strings.TrimSpace(opts.AnnouncementID); id != "" {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "lostAnnouncementId", Value: id}},
			bson.D{{Key: "foundAnnouncementId", Value: id}},
		}})
	}
	if status := strings.ToLower(strings.TrimSpace(opts.Status)); status != "" {
		filter = append(filter, bson.E{Key: "status", Value: status})
	}
	if opts.MinConfidence > 0 {
		filter = append(filter, bson.E{Key: "confidence", Value: bson.D{{Key: "$gte", Value: opts.MinConfidence}}})
	}
	return filter
}

// idString renders a stored _id the way the rest of the service refers to it.
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}
