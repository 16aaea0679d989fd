package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsAdmittedTotal,
		jobsFinishedTotal,
		jobsClaimedTotal,
		jobRetriesTotal,
		jobDuration,
	)
}

var (
	jobsAdmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_admitted_total",
			Help: "Jobs admitted to the queue, labeled by outcome (ok/billing_rejected).",
		},
		[]string{"outcome"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_finished_total",
			Help: "Jobs finished by final status (completed/review_required/retry/failed).",
		},
		[]string{"status"},
	)

	jobsClaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jobs_claimed_total",
			Help: "Jobs successfully claimed by workers.",
		},
	)

	jobRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "job_retries_total",
			Help: "Retry transitions scheduled with backoff.",
		},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "job_processing_duration_seconds",
			Help:    "Wall time spent processing one claimed job.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

func IncJobAdmitted(outcome string) { jobsAdmittedTotal.WithLabelValues(norm(outcome)).Inc() }

func IncJobFinished(status string) { jobsFinishedTotal.WithLabelValues(norm(status)).Inc() }

func IncJobClaimed() { jobsClaimedTotal.Inc() }

func IncJobRetry() { jobRetriesTotal.Inc() }

func ObserveJobDuration(seconds float64) { jobDuration.Observe(seconds) }
