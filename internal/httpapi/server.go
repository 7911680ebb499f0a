// Package httpapi serves the read-only match API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/PaulChelaru/petfinder-matching-service/internal/globaltime"
	"github.com/PaulChelaru/petfinder-matching-service/internal/metrics"
	"github.com/PaulChelaru/petfinder-matching-service/internal/models"
	"github.com/PaulChelaru/petfinder-matching-service/internal/scoring"
)

const (
	defaultPageSize        = 20
	maxPageSize            = 100
	announcementMatchLimit = 100
)

// MatchReader is the query side of a match store.
type MatchReader interface {
	ListMatches(ctx context.Context, opts models.MatchListOptions) (int64, []models.Match, error)
	Ping(ctx context.Context) error
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	QueryTimeout    time.Duration
}

type Server struct {
	reader  MatchReader
	logger  zerolog.Logger
	opts    Options
	metrics *metrics.Collector
}

// matchItem is a match plus the presentation fields clients display.
type matchItem struct {
	models.Match
	ConfidenceLevel         string `json:"confidenceLevel"`
	Priority                string `json:"priority"`
	DistanceFormatted       string `json:"distanceFormatted,omitempty"`
	TimeDifferenceFormatted string `json:"timeDifferenceFormatted,omitempty"`
}

func NewServer(reader MatchReader, logger zerolog.Logger, opts Options, collector *metrics.Collector) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 10 * time.Second
	}
	opts.Host = host

	return &Server{
		reader:  reader,
		logger:  logger.With().Str("component", "httpapi").Logger(),
		opts:    opts,
		metrics: collector,
	}
}

// Handler builds the Echo instance with every route registered.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if s.metrics != nil {
				s.metrics.HTTPRequest(c.Path(), strconv.Itoa(v.Status))
			}
			evt := s.logger.Info()
			if v.Error != nil {
				evt = s.logger.Error().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/matches", s.handleMatches)
	api.GET("/announcements/:announcement_id/matches", s.handleAnnouncementMatches)

	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.reader == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("match API started")
	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("match API stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if v, ok := he.Message.(string); ok && strings.TrimSpace(v) != "" {
			message = v
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.opts.QueryTimeout)
	defer cancel()

	if err := s.reader.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("store ping failed")
		return unavailable(c, "Store unavailable")
	}
	return success(c, map[string]any{
		"service": "petmatch",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleMatches(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	status, minConfidence, fieldErrors := parseMatchFilters(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	opts := models.MatchListOptions{
		Status:        status,
		MinConfidence: minConfidence,
		Page:          page,
		Limit:         limit,
	}
	total, rows, err := s.list(c.Request().Context(), opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("query matches failed")
		return internalError(c, "Failed to load matches")
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return success(c, map[string]any{
		"items": toItems(rows),
		"pagination": map[string]any{
			"page":        page,
			"limit":       limit,
			"total_items": total,
			"total_pages": totalPages,
		},
		"filters": map[string]any{
			"status":         status,
			"min_confidence": minConfidence,
		},
	})
}

func (s *Server) handleAnnouncementMatches(c echo.Context) error {
	announcementID := strings.TrimSpace(c.Param("announcement_id"))
	if announcementID == "" {
		return failValidation(c, map[string]string{"announcement_id": "is required"})
	}
	status, minConfidence, fieldErrors := parseMatchFilters(c)
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	_, rows, err := s.list(c.Request().Context(), models.MatchListOptions{
		AnnouncementID: announcementID,
		Status:         status,
		MinConfidence:  minConfidence,
		Page:           1,
		Limit:          announcementMatchLimit,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("announcement_id", announcementID).Msg("query announcement matches failed")
		return internalError(c, "Failed to load matches")
	}

	return success(c, map[string]any{
		"announcement_id": announcementID,
		"items":           toItems(rows),
		"count":           len(rows),
	})
}

func (s *Server) list(ctx context.Context, opts models.MatchListOptions) (int64, []models.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()
	return s.reader.ListMatches(ctx, opts)
}

func parseMatchFilters(c echo.Context) (string, int, map[string]string) {
	fieldErrors := map[string]string{}

	status := strings.TrimSpace(strings.ToLower(c.QueryParam("status")))
	if status != "" && !models.ValidMatchStatus(status) {
		fieldErrors["status"] = "must be one of pending, confirmed, rejected"
	}
	minConfidence, err := parsePositiveInt(c.QueryParam("min_confidence"), 0, 0, scoring.MaxConfidence)
	if err != nil {
		fieldErrors["min_confidence"] = err.Error()
	}
	return status, minConfidence, fieldErrors
}

func toItems(rows []models.Match) []matchItem {
	items := make([]matchItem, 0, len(rows))
	for _, m := range rows {
		item := matchItem{
			Match:           m,
			ConfidenceLevel: scoring.ConfidenceLevel(m.Confidence),
			Priority:        scoring.PriorityLevel(m.Confidence, m.Distance),
		}
		if m.Distance != nil {
			item.DistanceFormatted = scoring.FormatDistance(*m.Distance)
		}
		if m.TimeDifference != nil {
			item.TimeDifferenceFormatted = scoring.FormatTimeDifference(*m.TimeDifference)
		}
		items = append(items, item)
	}
	return items
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
