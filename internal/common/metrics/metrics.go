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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ReconcileCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_calls_total",
			Help: "Calls made to the reconciliation endpoint",
		},
		[]string{"operation", "result"},
	)

	ReconcileCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_call_duration_seconds",
			Help:    "Duration of reconciliation endpoint calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_batches_total",
			Help: "Batches reconciled, by outcome",
		},
		[]string{"result"},
	)

	NamesReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_names_total",
			Help: "Species names that received a result row",
		},
	)

	RunsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "species_runs_started_total",
			Help: "Runs started, by source",
		},
		[]string{"source"},
	)

	RunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "species_runs_finished_total",
			Help: "Runs finished, by status and error code",
		},
		[]string{"status", "error_code"},
	)

	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "species_runs_active",
			Help: "Runs currently executing",
		},
	)

	LowScoreRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "species_runs_low_score_total",
			Help: "Finished runs whose minimum score fell below the advisory threshold",
		},
	)
)
