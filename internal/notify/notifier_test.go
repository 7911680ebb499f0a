package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func TestNewWithoutEndpointIsDisabled(t *testing.T) {
	t.Parallel()

	n := New("  ", time.Second, zerolog.Nop())
	if n != nil {
		t.Fatalf("expected nil notifier")
	}
	if err := n.MatchesUpdated(context.Background(), "user-1", nil); err != nil {
		t.Fatalf("expected nil notifier to be a no-op, got %v", err)
	}
}

func TestMatchesUpdatedPostsPayload(t *testing.T) {
	t.Parallel()

	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, zerolog.Nop())
	if err := n.MatchesUpdated(context.Background(), "user-1", []string{"lost-1", "found-2"}); err != nil {
		t.Fatalf("MatchesUpdated failed: %v", err)
	}
	if got.UserID != "user-1" || got.Reason != ReasonMatchesUpdated {
		t.Fatalf("unexpected payload %+v", got)
	}
	if diff := cmp.Diff([]string{"lost-1", "found-2"}, got.AnnouncementIDs); diff != "" {
		t.Fatalf("announcement ids mismatch (-want +got):\n%s", diff)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected occurredAt to be set")
	}
}

func TestMatchesUpdatedReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second, zerolog.Nop()).MatchesUpdated(context.Background(), "user-1", nil)
	if err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestMatchesUpdatedRequiresUser(t *testing.T) {
	t.Parallel()

	n := New("http://127.0.0.1:1", time.Second, zerolog.Nop())
	if err := n.MatchesUpdated(context.Background(), " ", nil); err == nil {
		t.Fatalf("expected empty user id to fail")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, zerolog.Nop())
	for i := 0; i < 5; i++ {
		if err := n.MatchesUpdated(context.Background(), "user-1", nil); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}
	err := n.MatchesUpdated(context.Background(), "user-1", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if hits.Load() != 5 {
		t.Fatalf("expected the open breaker to short-circuit, got %d hits", hits.Load())
	}
}
