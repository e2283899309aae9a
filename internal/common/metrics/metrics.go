// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	CandidatePoolSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidate_pool_size",
			Help:    "Candidate pool size per retrieval, by retrieval mode",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		},
		[]string{"mode"}, // primary | fallback
	)

	CandidatesExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_candidates_excluded_total",
			Help: "Candidates removed by hard constraints, by constraint family",
		},
		[]string{"constraint"}, // allergen | diet
	)

	RelaxedResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_relaxed_results_total",
			Help: "Recommendation calls that could not meet the survivor floor",
		},
	)

	DegradedFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_degraded_fetches_total",
			Help: "Retrievals that fell back to the category-only query",
		},
	)
)
