// Package metrics exposes the matching pipeline counters in Prometheus
// format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "petmatch"

// Event outcomes.
const (
	OutcomeMatched  = "matched"
	OutcomeNoMatch  = "no_match"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// Collector owns a private registry so several collectors can coexist in
// one process.
type Collector struct {
	registry *prometheus.Registry

	eventsProcessed      *prometheus.CounterVec
	eventDuration        prometheus.Histogram
	candidatesScored     prometheus.Counter
	matchesCreated       prometheus.Counter
	duplicateMatches     prometheus.Counter
	propagationFailures  prometheus.Counter
	notificationFailures prometheus.Counter
	httpRequests         *prometheus.CounterVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		eventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Announcement-created events handled, by outcome.",
		}, []string{"outcome"}),
		eventDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent matching one announcement.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		candidatesScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_scored_total",
			Help:      "Candidate announcements run through the scoring engine.",
		}),
		matchesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_created_total",
			Help:      "Match records inserted.",
		}),
		duplicateMatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_matches_total",
			Help:      "Match inserts skipped because the pair already existed.",
		}),
		propagationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagation_failures_total",
			Help:      "Back-reference updates that failed after retries.",
		}),
		notificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Cache invalidation requests that failed.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Read API requests by route and status.",
		}, []string{"route", "status"}),
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) EventProcessed(outcome string, took time.Duration) {
	c.eventsProcessed.WithLabelValues(outcome).Inc()
	c.eventDuration.Observe(took.Seconds())
}

func (c *Collector) CandidatesScored(n int) { c.candidatesScored.Add(float64(n)) }
func (c *Collector) MatchCreated()          { c.matchesCreated.Inc() }
func (c *Collector) DuplicateMatch()        { c.duplicateMatches.Inc() }
func (c *Collector) PropagationFailed()     { c.propagationFailures.Inc() }
func (c *Collector) NotificationFailed()    { c.notificationFailures.Inc() }

func (c *Collector) HTTPRequest(route, status string) {
	c.httpRequests.WithLabelValues(route, status).Inc()
}
