// Package matching runs the matching pipeline for one announcement: load,
// retrieve candidates, score, select, persist and propagate.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PaulChelaru/petfinder-matching-service/internal/config"
	"github.com/PaulChelaru/petfinder-matching-service/internal/features"
	"github.com/PaulChelaru/petfinder-matching-service/internal/globaltime"
	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
	"github.com/PaulChelaru/petfinder-matching-service/internal/query"
	"github.com/PaulChelaru/petfinder-matching-service/internal/scoring"
)

// Store is the persistence the pipeline needs. Both internal/db and
// internal/mongostore implement it.
type Store interface {
	FindAnnouncement(ctx context.Context, id string) (*models.Announcement, error)
	FindCandidates(ctx context.Context, f query.Filter) ([]models.Announcement, error)
	CreateMatch(ctx context.Context, m models.Match) (bool, error)
	AppendMatchRefs(ctx context.Context, id string, refs []models.MatchRef, at time.Time) error
}

// Notifier tells downstream caches that a user's matches changed.
type Notifier interface {
	MatchesUpdated(ctx context.Context, userID string, announcementIDs []string) error
}

// Recorder receives pipeline counters. A nil Recorder records nothing.
type Recorder interface {
	CandidatesScored(n int)
	MatchCreated()
	DuplicateMatch()
	PropagationFailed()
	NotificationFailed()
}

type Options struct {
	Query               query.Options
	MinConfidence       int
	TopN                int
	StoreTimeout        time.Duration
	NotifyTimeout       time.Duration
	PropagationAttempts uint
	PropagationDelay    time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Query: query.Options{
			MaxDistanceMeters: cfg.MaxDistanceMeters,
			DaysBefore:        cfg.DaysBefore,
			DaysAfter:         cfg.DaysAfter,
			Limit:             cfg.CandidateLimit,
			SkipLocation:      cfg.SkipLocation,
			SkipTime:          cfg.SkipTime,
			SkipBreed:         cfg.SkipBreed,
		},
		MinConfidence:       cfg.MinConfidence,
		TopN:                cfg.TopN,
		StoreTimeout:        cfg.StoreTimeout,
		NotifyTimeout:       cfg.NotifyTimeout,
		PropagationAttempts: cfg.PropagationAttempts,
		PropagationDelay:    200 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	if o.TopN <= 0 {
		o.TopN = scoring.DefaultTopN
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 10 * time.Second
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 5 * time.Second
	}
	if o.PropagationAttempts == 0 {
		o.PropagationAttempts = 3
	}
	return o
}

// MatchOutcome is one selected pair and whether this run wrote it.
type MatchOutcome struct {
	Match   models.Match
	Created bool
}

// Result summarizes one pipeline run.
type Result struct {
	AnnouncementID    string
	Candidates        int
	Skipped           int
	Matches           []MatchOutcome
	PropagationErrors int
	NotifiedUsers     int
}

// Created counts the matches this run inserted.
func (r Result) Created() int {
	n := 0
	for _, m := range r.Matches {
		if m.Created {
			n++
		}
	}
	return n
}

type Service struct {
	store    Store
	notifier Notifier
	engine   *scoring.Engine
	opts     Options
	logger   zerolog.Logger
	recorder Recorder
}

func NewService(store Store, notifier Notifier, engine *scoring.Engine, opts Options, logger zerolog.Logger, recorder Recorder) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("scoring engine is required")
	}
	return &Service{
		store:    store,
		notifier: notifier,
		engine:   engine,
		opts:     opts.withDefaults(),
		logger:   logger.With().Str("component", "matching").Logger(),
		recorder: recorder,
	}, nil
}

// ProcessAnnouncement matches announcement id against its counterparts and
// persists the best results. It is safe to call repeatedly for the same id.
func (s *Service) ProcessAnnouncement(ctx context.Context, id string) (Result, error) {
	res := Result{AnnouncementID: id}
	log := s.logger.With().Str("announcement_id", id).Logger()

	source, err := s.loadSource(ctx, id)
	if err != nil {
		return res, err
	}
	sourceFeatures, err := features.Extract(*source)
	if err != nil {
		return res, newError(CodeInvalidPayload, "extract source features", err)
	}

	filter, err := query.BuildCandidateFilter(sourceFeatures, s.opts.Query)
	if err != nil {
		return res, newError(CodeMatching, "build candidate filter", err)
	}
	candidates, err := s.findCandidates(ctx, filter)
	if err != nil {
		return res, err
	}
	res.Candidates = len(candidates)

	owners := make(map[string]string, len(candidates))
	scored := make([]scoring.Scored, 0, len(candidates))
	for _, c := range candidates {
		cf, err := features.Extract(c)
		if err != nil {
			res.Skipped++
			log.Warn().Err(err).Str("candidate_id", c.ID).Msg("skip malformed candidate")
			continue
		}
		owners[cf.ID] = cf.UserID
		scored = append(scored, scoring.Scored{Candidate: cf, Outcome: s.engine.Score(sourceFeatures, cf)})
	}
	s.recordScored(len(scored))

	selected := scoring.Select(scored, s.opts.MinConfidence, s.opts.TopN)
	if len(selected) == 0 {
		log.Debug().Int("candidates", res.Candidates).Msg("no candidate reached the confidence cutoff")
		return res, nil
	}

	now := globaltime.UTC()
	persisted := make([]scoring.Scored, 0, len(selected))
	var persistErr error
	for _, sel := range selected {
		outcome, err := s.persistMatch(ctx, sourceFeatures, sel, now)
		if err != nil {
			if persistErr == nil {
				persistErr = err
			}
			log.Error().Err(err).Int("code", int(CodeOf(err))).Str("candidate_id", sel.Candidate.ID).Msg("failed to persist match")
			continue
		}
		res.Matches = append(res.Matches, outcome)
		persisted = append(persisted, sel)
	}

	// Every stored pair gets its back-references even when a sibling write
	// failed; the event is acknowledged either way.
	if len(persisted) > 0 {
		res.PropagationErrors = s.propagate(ctx, log, sourceFeatures.ID, persisted, now)
		res.NotifiedUsers = s.notify(ctx, log, source, persisted, owners)
	}
	if persistErr != nil {
		return res, persistErr
	}

	log.Info().
		Int("candidates", res.Candidates).
		Int("selected", len(selected)).
		Int("created", res.Created()).
		Int("propagation_errors", res.PropagationErrors).
		Msg("announcement matched")
	return res, nil
}

func (s *Service) loadSource(ctx context.Context, id string) (*models.Announcement, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	source, err := s.store.FindAnnouncement(callCtx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, newError(CodeMatching, "load source announcement", fmt.Errorf("%s: %w", id, ErrAnnouncementNotFound))
	}
	if err != nil {
		return nil, newError(CodeDatabase, "load source announcement", err)
	}
	return source, nil
}

func (s *Service) findCandidates(ctx context.Context, filter query.Filter) ([]models.Announcement, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	candidates, err := s.store.FindCandidates(callCtx, filter)
	if err != nil {
		return nil, newError(CodeDatabase, "find candidates", err)
	}
	return candidates, nil
}

func (s *Service) persistMatch(ctx context.Context, source features.Features, sel scoring.Scored, now time.Time) (MatchOutcome, error) {
	lostID, foundID, err := models.ResolveRoles(source.ID, source.Type, sel.Candidate.ID)
	if err != nil {
		return MatchOutcome{}, newError(CodeMatching, "resolve match roles", err)
	}

	m := models.Match{
		MatchID:             uuid.NewString(),
		LostAnnouncementID:  lostID,
		FoundAnnouncementID: foundID,
		Confidence:          sel.Outcome.Confidence,
		Status:              models.MatchStatusPending,
		Distance:            sel.Outcome.DistanceKm,
		TimeDifference:      sel.Outcome.TimeDifferenceHours,
		MatchFactors:        sel.Outcome.MatchFactors,
		Reasoning:           sel.Outcome.Reasoning,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	created, err := s.store.CreateMatch(callCtx, m)
	if err != nil {
		return MatchOutcome{}, newError(CodeDatabase, "create match", err)
	}
	if created {
		s.recordCreated()
	} else {
		s.recordDuplicate()
	}
	return MatchOutcome{Match: m, Created: created}, nil
}

// propagate writes the back-references on both sides. Failures are logged
// and counted; they never undo persisted matches.
func (s *Service) propagate(ctx context.Context, log zerolog.Logger, sourceID string, selected []scoring.Scored, at time.Time) int {
	failures := 0

	sourceRefs := make([]models.MatchRef, 0, len(selected))
	for _, sel := range selected {
		sourceRefs = append(sourceRefs, models.MatchRef{AnnouncementID: sel.Candidate.ID, Score: sel.Outcome.Confidence})
	}
	if err := s.appendRefs(ctx, log, sourceID, sourceRefs, at); err != nil {
		failures++
		s.recordPropagationFailure()
		log.Error().Err(err).Int("code", int(CodeDatabase)).Msg("failed to update source back-references")
	}

	for _, sel := range selected {
		ref := []models.MatchRef{{AnnouncementID: sourceID, Score: sel.Outcome.Confidence}}
		if err := s.appendRefs(ctx, log, sel.Candidate.ID, ref, at); err != nil {
			failures++
			s.recordPropagationFailure()
			log.Error().Err(err).Int("code", int(CodeDatabase)).Str("candidate_id", sel.Candidate.ID).Msg("failed to update candidate back-references")
		}
	}
	return failures
}

func (s *Service) appendRefs(ctx context.Context, log zerolog.Logger, id string, refs []models.MatchRef, at time.Time) error {
	return retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
			defer cancel()
			return s.store.AppendMatchRefs(callCtx, id, refs, at)
		},
		retry.Context(ctx),
		retry.Attempts(s.opts.PropagationAttempts),
		retry.Delay(s.opts.PropagationDelay),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, models.ErrNotFound)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Str("target_id", id).Msg("retrying back-reference update")
		}),
	)
}

// notify invalidates cached matches for the source owner and every owner of
// a selected candidate, once per user.
func (s *Service) notify(ctx context.Context, log zerolog.Logger, source *models.Announcement, selected []scoring.Scored, owners map[string]string) int {
	if s.notifier == nil {
		return 0
	}

	var order []string
	byUser := make(map[string][]string)
	add := func(userID, announcementID string) {
		if userID == "" {
			return
		}
		if _, ok := byUser[userID]; !ok {
			order = append(order, userID)
		}
		byUser[userID] = appendUnique(byUser[userID], announcementID)
	}
	add(source.UserID, source.ID)
	for _, sel := range selected {
		add(owners[sel.Candidate.ID], sel.Candidate.ID)
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.opts.NotifyTimeout)
	defer cancel()

	notified := 0
	for _, userID := range order {
		if err := s.notifier.MatchesUpdated(notifyCtx, userID, byUser[userID]); err != nil {
			s.recordNotificationFailure()
			log.Warn().Err(err).Int("code", int(CodeExternalResource)).Str("user_id", userID).Msg("cache invalidation failed")
			continue
		}
		notified++
	}
	return notified
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func (s *Service) recordScored(n int) {
	if s.recorder != nil {
		s.recorder.CandidatesScored(n)
	}
}

func (s *Service) recordCreated() {
	if s.recorder != nil {
		s.recorder.MatchCreated()
	}
}

func (s *Service) recordDuplicate() {
	if s.recorder != nil {
		s.recorder.DuplicateMatch()
	}
}

func (s *Service) recordPropagationFailure() {
	if s.recorder != nil {
		s.recorder.PropagationFailed()
	}
}

func (s *Service) recordNotificationFailure() {
	if s.recorder != nil {
		s.recorder.NotificationFailed()
	}
}
