// Package metrics provides Prometheus collectors for persona resolution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeGROOVE-dev/doppelganger/pkg/httpcache"
)

// Metric names.
const (
	MetricQueriesTotal         = "doppelganger_queries_total"
	MetricSourceFailuresTotal  = "doppelganger_source_failures_total"
	MetricSourceRetriesTotal   = "doppelganger_source_retries_total"
	MetricCandidatesTotal      = "doppelganger_candidates_total"
	MetricFaceComparisonsTotal = "doppelganger_face_comparisons_total"
	MetricResolutionsTotal     = "doppelganger_resolutions_total"
	MetricTopConfidence        = "doppelganger_top_confidence"
	MetricCacheHitsTotal       = "doppelganger_cache_hits_total"
	MetricCacheMissesTotal     = "doppelganger_cache_misses_total"
)

// Label values.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"

	FaceMatch = "match" // face confidence above the override threshold
	FaceWeak  = "weak"
	FaceNone  = "none" // no comparable face

	ResolutionMatched = "matched"
	ResolutionEmpty   = "empty"
)

// Metrics holds the resolution collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	queries         *prometheus.CounterVec
	sourceFailures  prometheus.Counter
	sourceRetries   prometheus.Counter
	candidates      *prometheus.CounterVec
	faceComparisons *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	topConfidence   prometheus.Histogram
	cacheHits       prometheus.CounterFunc
	cacheMisses     prometheus.CounterFunc
}

// New creates the collectors. They are not registered; call Register.
func New() *Metrics {
	return &Metrics{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricQueriesTotal, Help: "Search queries issued, by tier."},
			[]string{"tier"},
		),
		sourceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSourceFailuresTotal,
			Help: "Candidate source calls that failed after all retries.",
		}),
		sourceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSourceRetriesTotal,
			Help: "Candidate source calls that were retried.",
		}),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricCandidatesTotal, Help: "Search hits seen by the profile filter, by outcome."},
			[]string{"outcome"},
		),
		faceComparisons: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricFaceComparisonsTotal, Help: "Face comparisons, by outcome."},
			[]string{"outcome"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricResolutionsTotal, Help: "Completed persona resolutions, by result."},
			[]string{"result"},
		),
		topConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricTopConfidence,
			Help:    "Real confidence of the best match per resolution.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.99, 1.0},
		}),
		cacheHits: prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: MetricCacheHitsTotal, Help: "HTTP cache hits."},
			func() float64 { return float64(httpcache.CacheStats().Hits) },
		),
		cacheMisses: prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: MetricCacheMissesTotal, Help: "HTTP cache misses."},
			func() float64 { return float64(httpcache.CacheStats().Misses) },
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.queries, m.sourceFailures, m.sourceRetries, m.candidates,
		m.faceComparisons, m.resolutions, m.topConfidence, m.cacheHits, m.cacheMisses,
	}
}

// QueryIssued counts one query of the given tier label.
func (m *Metrics) QueryIssued(tier string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(tier).Inc()
}

// SourceFailed counts a source call that exhausted its retries.
func (m *Metrics) SourceFailed() {
	if m == nil {
		return
	}
	m.sourceFailures.Inc()
}

// SourceRetried counts a retried source call.
func (m *Metrics) SourceRetried() {
	if m == nil {
		return
	}
	m.sourceRetries.Inc()
}

// Candidates records filter outcomes for one query.
func (m *Metrics) Candidates(accepted, rejected int) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(OutcomeAccepted).Add(float64(accepted))
	m.candidates.WithLabelValues(OutcomeRejected).Add(float64(rejected))
}

// FaceCompared counts a face comparison outcome (FaceMatch, FaceWeak, FaceNone).
func (m *Metrics) FaceCompared(outcome string) {
	if m == nil {
		return
	}
	m.faceComparisons.WithLabelValues(outcome).Inc()
}

// Resolved records one finished resolution and its best real confidence.
func (m *Metrics) Resolved(matches int, top float64) {
	if m == nil {
		return
	}
	if matches == 0 {
		m.resolutions.WithLabelValues(ResolutionEmpty).Inc()
		return
	}
	m.resolutions.WithLabelValues(ResolutionMatched).Inc()
	m.topConfidence.Observe(top)
}
