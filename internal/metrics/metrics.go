// Package metrics defines Prometheus metrics for enrichment analyses.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ProbabilityEvaluations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gotrack_probability_evaluations_total",
			Help: "Hypergeometric tail probabilities actually computed",
		},
	)

	ProbabilityCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gotrack_probability_cache_hits_total",
			Help: "Tail probabilities served from the memoization cache",
		},
	)

	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gotrack_analyses_total",
			Help: "Enrichment analyses by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gotrack_analysis_duration_seconds",
			Help:    "Wall time of enrichment analyses in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	EditionsAnalyzed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gotrack_editions_analyzed_total",
			Help: "Editions processed by the temporal orchestrator",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ProbabilityEvaluations, ProbabilityCacheHits,
		AnalysesTotal, AnalysisDuration,
		EditionsAnalyzed,
	)
}
