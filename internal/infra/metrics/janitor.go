package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(janitorResetsTotal, rateLimitRejectedTotal)
}

var (
	janitorResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "janitor_jobs_reset_total",
			Help: "Stuck PROCESSING jobs reset to RETRY by the janitor.",
		},
	)

	rateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejected_total",
			Help: "Requests rejected by the per-tenant rate limiter.",
		},
	)
)

func AddJanitorResets(n int) { janitorResetsTotal.Add(float64(n)) }

func IncRateLimitRejected() { rateLimitRejectedTotal.Inc() }
