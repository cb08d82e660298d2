// Package metrics defines the Prometheus collectors venue-events exports.
//
// Collectors are grouped per component and registered on a caller-supplied
// registry. Every method is safe on a nil receiver so components can run
// without metrics in tests and one-off CLI runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venue_events"

// Geocoder lookup outcomes.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Per-event pipeline outcomes.
const (
	EventIndexed        = "indexed"
	EventSkippedParse   = "skipped_parse"
	EventSkippedInvalid = "skipped_invalid"
	EventEnrichFailed   = "enrich_failed"
	EventIndexFailed    = "index_failed"
)

// Registry bundles every collector set.
type Registry struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Pipeline *Pipeline
	Geocoder *Geocoder
	HTTP     *HTTP
}

// NewRegistry creates collectors on a fresh registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	return &Registry{
		Registerer: reg,
		Gatherer:   reg,
		Pipeline:   NewPipeline(reg),
		Geocoder:   NewGeocoder(reg),
		HTTP:       NewHTTP(reg),
	}
}

// Pipeline tracks ingestion runs.
type Pipeline struct {
	events      *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewPipeline registers ingestion collectors on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Listings processed, by source and outcome",
		}, []string{"source", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Ingestion runs, by source and result",
		}, []string{"source", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall time of an ingestion run",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"source"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed without a batch error",
		}, []string{"source"}),
	}
	reg.MustRegister(p.events, p.runs, p.runDuration, p.lastSuccess)
	return p
}

// Event counts one listing outcome.
func (p *Pipeline) Event(source, outcome string) {
	if p == nil {
		return
	}
	p.events.WithLabelValues(source, outcome).Inc()
}

// Run records a finished run.
func (p *Pipeline) Run(source string, d time.Duration, err error) {
	if p == nil {
		return
	}
	p.runDuration.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		p.runs.WithLabelValues(source, "error").Inc()
		return
	}
	p.runs.WithLabelValues(source, "ok").Inc()
	p.lastSuccess.WithLabelValues(source).SetToCurrentTime()
}

// Geocoder tracks resolver lookups.
type Geocoder struct {
	lookups *prometheus.CounterVec
}

// NewGeocoder registers resolver collectors on reg.
func NewGeocoder(reg prometheus.Registerer) *Geocoder {
	g := &Geocoder{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geocoder",
			Name:      "lookups_total",
			Help:      "Location lookups, by outcome (hit, miss, error)",
		}, []string{"outcome"}),
	}
	reg.MustRegister(g.lookups)
	return g
}

// Observe counts one lookup.
func (g *Geocoder) Observe(outcome string) {
	if g == nil {
		return
	}
	g.lookups.WithLabelValues(outcome).Inc()
}

// HTTP tracks query service requests.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTP registers query service collectors on reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	h := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Query service requests, by route and status code",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Query service latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(h.requests, h.duration)
	return h
}

// Observe records one request.
func (h *HTTP) Observe(route string, code int, d time.Duration) {
	if h == nil {
		return
	}
	h.requests.WithLabelValues(route, statusLabel(code)).Inc()
	h.duration.WithLabelValues(route).Observe(d.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
