// Package notify tells the announcement service that a user's cached match
// lists are stale.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/PaulChelaru/petfinder-matching-service/internal/globaltime"
)

const ReasonMatchesUpdated = "matches_updated"

// ErrUnavailable wraps requests rejected by the open circuit.
var ErrUnavailable = errors.New("notification endpoint unavailable")

type payload struct {
	UserID          string    `json:"userId"`
	Reason          string    `json:"reason"`
	AnnouncementIDs []string  `json:"announcementIds"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// HTTPNotifier posts invalidation requests to a single endpoint behind a
// circuit breaker.
type HTTPNotifier struct {
	endpointURL string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[struct{}]
	logger      zerolog.Logger
}

// New returns nil when endpoint is empty; callers treat a nil notifier as
// disabled.
func New(endpoint string, timeout time.Duration, logger zerolog.Logger) *HTTPNotifier {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	n := &HTTPNotifier{
		endpointURL: endpoint,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With().Str("component", "notify").Logger(),
	}
	n.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "cache-invalidation",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			n.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return n
}

// MatchesUpdated posts one invalidation for userID.
func (n *HTTPNotifier) MatchesUpdated(ctx context.Context, userID string, announcementIDs []string) error {
	if n == nil {
		return nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if announcementIDs == nil {
		announcementIDs = []string{}
	}

	body, err := json.Marshal(payload{
		UserID:          userID,
		Reason:          ReasonMatchesUpdated,
		AnnouncementIDs: announcementIDs,
		OccurredAt:      globaltime.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (n *HTTPNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
