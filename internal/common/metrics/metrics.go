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

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Records created, by acquisition source",
		},
		[]string{"source"},
	)

	Conversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_conversions_total",
			Help: "Convert calls by outcome (registered, sync_failed, noop)",
		},
		[]string{"outcome"},
	)

	DegradedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_degraded_events_total",
			Help: "Non-fatal failures by taxonomy code",
		},
		[]string{"code"},
	)

	CRMAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_crm_attempts_total",
			Help: "CRM case creation attempts by result and error type",
		},
		[]string{"result", "error_type"},
	)

	BackgroundTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_background_tasks_total",
			Help: "Background stage tasks by name and status",
		},
		[]string{"task", "status"},
	)

	BackgroundTasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_background_tasks_active",
			Help: "Background stage tasks currently running",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"stage"},
	)
)
