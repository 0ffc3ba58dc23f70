// Package metrics defines the Prometheus collectors exported by lexigraph.
//
// Collectors are package-level so every component can record without plumbing a
// registry through constructors. Register must be called once by the process that
// serves /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lexigraph"

// Retrieval metrics.
var (
	StageResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Candidates produced per hybrid search stage",
		},
		[]string{"stage"},
	)

	StageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Hybrid search stage failures absorbed as empty results",
		},
		[]string{"stage", "kind"},
	)

	ExpansionReachedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_reached_total",
			Help:      "Nodes emitted by graph expansion",
		},
		[]string{"mode"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end search latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"routing"},
	)
)

// Orchestration metrics.
var (
	AssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Domain self-assessments by outcome",
		},
		[]string{"outcome"}, // "ok" / "degraded"
	)

	CollaborationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaboration_requests_total",
			Help:      "A2A requests sent to peer domains by outcome",
		},
		[]string{"outcome"}, // "success" / "error" / "timeout"
	)

	RegistryRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_refreshes_total",
			Help:      "Domain registry refreshes by result",
		},
		[]string{"result"}, // "success" / "error"
	)

	RegistryDomains = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_domains",
			Help:      "Domains in the current registry snapshot",
		},
	)
)

// External service metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	JudgmentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judgment_requests_total",
			Help:      "Relevance judgment calls by kind and status",
		},
		[]string{"call", "status"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default Prometheus registerer.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			StageResultsTotal,
			StageErrorsTotal,
			ExpansionReachedTotal,
			QueryDuration,
			AssessmentsTotal,
			CollaborationRequestsTotal,
			RegistryRefreshesTotal,
			RegistryDomains,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingCacheTotal,
			JudgmentRequestsTotal,
		)
	})
}
