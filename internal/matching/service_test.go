package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/PaulChelaru/petfinder-matching-service/internal/analyzer"
	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
	"github.com/PaulChelaru/petfinder-matching-service/internal/query"
	"github.com/PaulChelaru/petfinder-matching-service/internal/scoring"
)

type fakeStore struct {
	mu sync.Mutex

	announcements map[string]models.Announcement
	candidates    []models.Announcement
	matches       map[[2]string]models.Match
	lastFilter    query.Filter

	findErr       error
	candidatesErr error
	appendFail    map[string]int
	appendCalls   map[string]int
	createCalls   int
	createFailOn  int
}

func newFakeStore(anns ...models.Announcement) *fakeStore {
	s := &fakeStore{
		announcements: make(map[string]models.Announcement),
		matches:       make(map[[2]string]models.Match),
		appendFail:    make(map[string]int),
		appendCalls:   make(map[string]int),
	}
	for _, a := range anns {
		s.announcements[a.ID] = a
	}
	return s
}

func (s *fakeStore) FindAnnouncement(_ context.Context, id string) (*models.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	a, ok := s.announcements[id]
	if !ok {
		return nil, fmt.Errorf("announcement %s: %w", id, models.ErrNotFound)
	}
	return &a, nil
}

func (s *fakeStore) FindCandidates(_ context.Context, f query.Filter) ([]models.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = f
	if s.candidatesErr != nil {
		return nil, s.candidatesErr
	}
	return append([]models.Announcement(nil), s.candidates...), nil
}

func (s *fakeStore) CreateMatch(_ context.Context, m models.Match) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createCalls == s.createFailOn {
		return false, errors.New("connection reset")
	}
	key := [2]string{m.LostAnnouncementID, m.FoundAnnouncementID}
	if _, dup := s.matches[key]; dup {
		return false, nil
	}
	s.matches[key] = m
	return true, nil
}

func (s *fakeStore) AppendMatchRefs(_ context.Context, id string, refs []models.MatchRef, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls[id]++
	if s.appendFail[id] > 0 {
		s.appendFail[id]--
		return errors.New("write conflict")
	}
	a, ok := s.announcements[id]
	if !ok {
		return fmt.Errorf("announcement %s: %w", id, models.ErrNotFound)
	}
	for _, ref := range refs {
		present := false
		for _, existing := range a.Matches {
			if existing.AnnouncementID == ref.AnnouncementID {
				present = true
				break
			}
		}
		if !present {
			a.Matches = append(a.Matches, ref)
		}
	}
	s.announcements[id] = a
	return nil
}

func (s *fakeStore) refs(id string) []models.MatchRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announcements[id].Matches
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls map[string][]string
	err   error
}

func (n *fakeNotifier) MatchesUpdated(_ context.Context, userID string, ids []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = make(map[string][]string)
	}
	n.calls[userID] = append(n.calls[userID], ids...)
	return n.err
}

type countingRecorder struct {
	mu                                           sync.Mutex
	scored, created, duplicates, propFail, notif int
}

func (r *countingRecorder) CandidatesScored(n int) { r.mu.Lock(); r.scored += n; r.mu.Unlock() }
func (r *countingRecorder) MatchCreated()         { r.mu.Lock(); r.created++; r.mu.Unlock() }
func (r *countingRecorder) DuplicateMatch()       { r.mu.Lock(); r.duplicates++; r.mu.Unlock() }
func (r *countingRecorder) PropagationFailed()    { r.mu.Lock(); r.propFail++; r.mu.Unlock() }
func (r *countingRecorder) NotificationFailed()   { r.mu.Lock(); r.notif++; r.mu.Unlock() }

var lastSeen = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

func lostGolden() models.Announcement {
	ts := lastSeen
	return models.Announcement{
		ID:           "lost-1",
		UserID:       "owner-1",
		Type:         models.TypeLost,
		Species:      "dog",
		Breed:        "Golden Retriever",
		Location:     models.PointLocation(44.4268, 26.1025),
		LastSeenDate: &ts,
		Status:       models.StatusActive,
	}
}

func foundGolden(id, userID string) models.Announcement {
	ts := lastSeen.Add(20 * time.Hour)
	return models.Announcement{
		ID:           id,
		UserID:       userID,
		Type:         models.TypeFound,
		Species:      "Dog",
		Breed:        "golden",
		Location:     models.PointLocation(44.4300, 26.1100),
		LastSeenDate: &ts,
		Status:       models.StatusActive,
	}
}

func newTestService(t *testing.T, store Store, notifier Notifier, rec Recorder) *Service {
	t.Helper()
	vocab, err := analyzer.DefaultVocabulary()
	if err != nil {
		t.Fatalf("load vocabulary: %v", err)
	}
	opts := Options{
		MinConfidence:       scoring.DefaultMinConfidence,
		TopN:                scoring.DefaultTopN,
		StoreTimeout:        time.Second,
		NotifyTimeout:       time.Second,
		PropagationAttempts: 3,
		PropagationDelay:    time.Millisecond,
	}
	svc, err := NewService(store, notifier, scoring.NewEngine(vocab), opts, zerolog.Nop(), rec)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestProcessAnnouncementCreatesBidirectionalMatch(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	candidate := foundGolden("found-1", "finder-1")
	store := newFakeStore(source, candidate)
	store.candidates = []models.Announcement{candidate}
	notifier := &fakeNotifier{}
	rec := &countingRecorder{}

	res, err := newTestService(t, store, notifier, rec).ProcessAnnouncement(context.Background(), "lost-1")
	if err != nil {
		t.Fatalf("ProcessAnnouncement failed: %v", err)
	}
	if len(res.Matches) != 1 || !res.Matches[0].Created {
		t.Fatalf("expected one created match, got %+v", res.Matches)
	}

	m := store.matches[[2]string{"lost-1", "found-1"}]
	if m.Status != models.MatchStatusPending {
		t.Fatalf("expected pending status, got %q", m.Status)
	}
	if m.Confidence != 98 {
		t.Fatalf("expected confidence 98, got %d", m.Confidence)
	}
	if m.MatchID == "" || m.MatchID == "lost-1" || m.MatchID == "found-1" {
		t.Fatalf("expected an independent match id, got %q", m.MatchID)
	}
	if m.Distance == nil || m.TimeDifference == nil || *m.TimeDifference != 20 {
		t.Fatalf("expected distance and a 20h time difference, got %v %v", m.Distance, m.TimeDifference)
	}

	if diff := cmp.Diff([]models.MatchRef{{AnnouncementID: "found-1", Score: 98}}, store.refs("lost-1")); diff != "" {
		t.Fatalf("source refs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.MatchRef{{AnnouncementID: "lost-1", Score: 98}}, store.refs("found-1")); diff != "" {
		t.Fatalf("candidate refs mismatch (-want +got):\n%s", diff)
	}

	wantCalls := map[string][]string{"owner-1": {"lost-1"}, "finder-1": {"found-1"}}
	if diff := cmp.Diff(wantCalls, notifier.calls); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
	if rec.scored != 1 || rec.created != 1 || rec.duplicates != 0 {
		t.Fatalf("unexpected counters %+v", rec)
	}
}

func TestProcessAnnouncementFoundSourceResolvesRoles(t *testing.T) {
	t.Parallel()

	lost := lostGolden()
	found := foundGolden("found-1", "finder-1")
	store := newFakeStore(lost, found)
	store.candidates = []models.Announcement{lost}

	if _, err := newTestService(t, store, nil, nil).ProcessAnnouncement(context.Background(), "found-1"); err != nil {
		t.Fatalf("ProcessAnnouncement failed: %v", err)
	}
	if _, ok := store.matches[[2]string{"lost-1", "found-1"}]; !ok {
		t.Fatalf("expected match keyed (lost-1, found-1), got %v", store.matches)
	}
}

func TestProcessAnnouncementSpeciesMismatchCreatesNothing(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	cat := foundGolden("found-cat", "finder-1")
	cat.Species = "cat"
	store := newFakeStore(source, cat)
	store.candidates = []models.Announcement{cat}
	notifier := &fakeNotifier{}

	res, err := newTestService(t, store, notifier, nil).ProcessAnnouncement(context.Background(), "lost-1")
	if err != nil {
		t.Fatalf("ProcessAnnouncement failed: %v", err)
	}
	if len(res.Matches) != 0 || len(store.matches) != 0 {
		t.Fatalf("expected no matches, got %+v", res.Matches)
	}
	if len(store.refs("lost-1")) != 0 || len(notifier.calls) != 0 {
		t.Fatalf("expected no propagation without matches")
	}
}

func TestProcessAnnouncementMissingCoordinatesStillMatches(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	candidate := foundGolden("found-1", "finder-1")
	candidate.Location = nil
	store := newFakeStore(source, candidate)
	store.candidates = []models.Announcement{candidate}

	if _, err := newTestService(t, store, nil, nil).ProcessAnnouncement(context.Background(), "lost-1"); err != nil {
		t.Fatalf("ProcessAnnouncement failed: %v", err)
	}
	m, ok := store.matches[[2]string{"lost-1", "found-1"}]
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.Confidence != 73 {
		t.Fatalf("expected confidence 73, got %d", m.Confidence)
	}
	if m.Distance != nil {
		t.Fatalf("expected no distance, got %v", *m.Distance)
	}
}

func TestProcessAnnouncementRedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	candidate := foundGolden("found-1", "finder-1")
	store := newFakeStore(source, candidate)
	store.candidates = []models.Announcement{candidate}
	rec := &countingRecorder{}
	svc := newTestService(t, store, nil, rec)

	for i := 0; i < 2; i++ {
		if _, err := svc.ProcessAnnouncement(context.Background(), "lost-1"); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}
	if len(store.matches) != 1 {
		t.Fatalf("expected exactly one match, got %d", len(store.matches))
	}
	if len(store.refs("lost-1")) != 1 || len(store.refs("found-1")) != 1 {
		t.Fatalf("expected back-references to stay deduplicated, got %v / %v", store.refs("lost-1"), store.refs("found-1"))
	}
	if rec.created != 1 || rec.duplicates != 1 {
		t.Fatalf("expected one create and one duplicate, got %+v", rec)
	}
}

func TestProcessAnnouncementKeepsTopN(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	store := newFakeStore(source)
	for i := 0; i < 6; i++ {
		c := foundGolden(fmt.Sprintf("found-%d", i), fmt.Sprintf("finder-%d", i))
		store.announcements[c.ID] = c
		store.candidates = append(store.candidates, c)
	}

	res, err := newTestService(t, store, nil, nil).ProcessAnnouncement(context.Background(), "lost-1")
	if err != nil {
		t.Fatalf("ProcessAnnouncement failed: %v", err)
	}
	if len(res.Matches) != scoring.DefaultTopN || len(store.refs("lost-1")) != scoring.DefaultTopN {
		t.Fatalf("expected %d matches, got %d", scoring.DefaultTopN, len(res.Matches))
	}
	// Equal scores keep retrieval order.
	for i, m := range res.Matches {
		if want := fmt.Sprintf("found-%d", i); m.Match.FoundAnnouncementID != want {
			t.Fatalf("match %d: expected %s, got %s", i, want, m.Match.FoundAnnouncementID)
		}
	}
}

func TestProcessAnnouncementSkipsMalformedCandidates(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	good := foundGolden("found-1", "finder-1")
	bad := foundGolden("found-bad", "finder-2")
	bad.Type = "adoption"
	store := newFakeStore(source, good, bad)
	store.candidates = []models.Announcement{bad, good}

	res, err := newTestService(t, store, nil, nil).ProcessAnnouncement(context.Background(), "lost-1")
	if err != nil {
		t.Fatalf("ProcessAnnouncement failed: %v", err)
	}
	if res.Skipped != 1 || len(res.Matches) != 1 {
		t.Fatalf("expected one skip and one match, got %+v", res)
	}
}

func TestProcessAnnouncementNotFound(t *testing.T) {
	t.Parallel()

	_, err := newTestService(t, newFakeStore(), nil, nil).ProcessAnnouncement(context.Background(), "ghost")
	if !errors.Is(err, ErrAnnouncementNotFound) {
		t.Fatalf("expected ErrAnnouncementNotFound, got %v", err)
	}
	if CodeOf(err) != CodeMatching {
		t.Fatalf("expected matching code, got %s", CodeOf(err))
	}
}

func TestProcessAnnouncementRetrievalErrorIsDatabaseError(t *testing.T) {
	t.Parallel()

	store := newFakeStore(lostGolden())
	store.candidatesErr = errors.New("connection reset")

	_, err := newTestService(t, store, nil, nil).ProcessAnnouncement(context.Background(), "lost-1")
	if err == nil {
		t.Fatalf("expected retrieval error")
	}
	if CodeOf(err) != CodeDatabase {
		t.Fatalf("expected database code, got %s", CodeOf(err))
	}
	if errors.Is(err, ErrAnnouncementNotFound) {
		t.Fatalf("retrieval error must not look like not-found")
	}
}

func TestProcessAnnouncementRetriesTransientPropagationFailures(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	candidate := foundGolden("found-1", "finder-1")
	store := newFakeStore(source, candidate)
	store.candidates = []models.Announcement{candidate}
	store.appendFail["found-1"] = 2

	res, err := newTestService(t, store, nil, nil).ProcessAnnouncement(context.Background(), "lost-1")
	if err != nil {
		t.Fatalf("ProcessAnnouncement failed: %v", err)
	}
	if res.PropagationErrors != 0 {
		t.Fatalf("expected retries to absorb the failures, got %d errors", res.PropagationErrors)
	}
	if store.appendCalls["found-1"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.appendCalls["found-1"])
	}
}

func TestProcessAnnouncementPropagationFailureKeepsMatches(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	c1 := foundGolden("found-1", "finder-1")
	c2 := foundGolden("found-2", "finder-2")
	store := newFakeStore(source, c1, c2)
	store.candidates = []models.Announcement{c1, c2}
	store.appendFail["found-1"] = 10
	rec := &countingRecorder{}

	res, err := newTestService(t, store, nil, rec).ProcessAnnouncement(context.Background(), "lost-1")
	if err != nil {
		t.Fatalf("propagation failures must not fail the run: %v", err)
	}
	if res.PropagationErrors != 1 || rec.propFail != 1 {
		t.Fatalf("expected one propagation error, got %d (recorded %d)", res.PropagationErrors, rec.propFail)
	}
	if len(store.matches) != 2 {
		t.Fatalf("expected both matches to persist, got %d", len(store.matches))
	}
	if len(store.refs("found-2")) != 1 {
		t.Fatalf("expected the healthy candidate to be updated")
	}
	if store.appendCalls["found-1"] != 3 {
		t.Fatalf("expected bounded attempts, got %d", store.appendCalls["found-1"])
	}
}

func TestProcessAnnouncementPersistFailureStillPropagatesStoredPairs(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	c1 := foundGolden("found-1", "finder-1")
	c2 := foundGolden("found-2", "finder-2")
	c3 := foundGolden("found-3", "finder-3")
	store := newFakeStore(source, c1, c2, c3)
	store.candidates = []models.Announcement{c1, c2, c3}
	store.createFailOn = 2
	notifier := &fakeNotifier{}

	res, err := newTestService(t, store, notifier, nil).ProcessAnnouncement(context.Background(), "lost-1")
	if err == nil {
		t.Fatalf("expected the failed write to be reported")
	}
	if CodeOf(err) != CodeDatabase {
		t.Fatalf("expected %s, got %s", CodeDatabase, CodeOf(err))
	}
	if store.createCalls != 3 || len(store.matches) != 2 || len(res.Matches) != 2 {
		t.Fatalf("expected the remaining selections to be written, got %d calls %d stored %d in result", store.createCalls, len(store.matches), len(res.Matches))
	}

	wantSource := []models.MatchRef{{AnnouncementID: "found-1", Score: 98}, {AnnouncementID: "found-3", Score: 98}}
	if diff := cmp.Diff(wantSource, store.refs("lost-1")); diff != "" {
		t.Fatalf("source refs mismatch (-want +got):\n%s", diff)
	}
	for _, id := range []string{"found-1", "found-3"} {
		if diff := cmp.Diff([]models.MatchRef{{AnnouncementID: "lost-1", Score: 98}}, store.refs(id)); diff != "" {
			t.Fatalf("%s refs mismatch (-want +got):\n%s", id, diff)
		}
	}
	if len(store.refs("found-2")) != 0 {
		t.Fatalf("expected no refs for the unstored pair, got %v", store.refs("found-2"))
	}
	if _, ok := notifier.calls["finder-2"]; ok {
		t.Fatalf("expected no notification for the unstored pair")
	}
}

func TestProcessAnnouncementNotifiesEachUserOnce(t *testing.T) {
	t.Parallel()

	source := lostGolden()
	c1 := foundGolden("found-1", "finder-1")
	c2 := foundGolden("found-2", "finder-1")
	c3 := foundGolden("found-3", "")
	store := newFakeStore(source, c1, c2, c3)
	store.candidates = []models.Announcement{c1, c2, c3}
	notifier := &fakeNotifier{err: errors.New("cache down")}
	rec := &countingRecorder{}

	res, err := newTestService(t, store, notifier, rec).ProcessAnnouncement(context.Background(), "lost-1")
	if err != nil {
		t.Fatalf("notification failures must not fail the run: %v", err)
	}
	want := map[string][]string{"owner-1": {"lost-1"}, "finder-1": {"found-1", "found-2"}}
	if diff := cmp.Diff(want, notifier.calls); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
	if res.NotifiedUsers != 0 || rec.notif != 2 {
		t.Fatalf("expected two failed notifications, got notified=%d failures=%d", res.NotifiedUsers, rec.notif)
	}
}

func TestProcessAnnouncementPassesConfiguredQueryOptions(t *testing.T) {
	t.Parallel()

	store := newFakeStore(lostGolden())
	vocab, err := analyzer.DefaultVocabulary()
	if err != nil {
		t.Fatalf("load vocabulary: %v", err)
	}
	svc, err := NewService(store, nil, scoring.NewEngine(vocab), Options{
		Query: query.Options{Limit: 7, SkipBreed: true, SkipTime: true},
	}, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if _, err := svc.ProcessAnnouncement(context.Background(), "lost-1"); err != nil {
		t.Fatalf("ProcessAnnouncement failed: %v", err)
	}
	if store.lastFilter.Limit != 7 {
		t.Fatalf("expected limit 7, got %d", store.lastFilter.Limit)
	}
	for _, p := range store.lastFilter.Predicates {
		switch p.(type) {
		case query.Between, query.ContainsAny:
			t.Fatalf("expected time and breed predicates to be skipped, got %T", p)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	err := newError(CodeDatabase, "find candidates", errors.New("timeout"))
	if got, want := err.Error(), "find candidates: DATABASE_ERROR: timeout"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if CodeOf(errors.New("plain")) != CodeUnexpected {
		t.Fatalf("expected unexpected code for plain errors")
	}
	if Code(1).String() != "CODE_1" {
		t.Fatalf("expected fallback name, got %s", Code(1))
	}
}
