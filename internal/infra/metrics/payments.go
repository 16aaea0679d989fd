package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileTotal,
		webhookRejectedTotal,
	)
}

var (
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_total",
			Help: "Reconciliation outcomes (reconciled/already_processed/failed/pending).",
		},
		[]string{"outcome"},
	)

	webhookRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_rejected_total",
			Help: "Webhook deliveries rejected before any state change, by reason.",
		},
		[]string{"reason"},
	)
)

func IncReconcile(outcome string) { reconcileTotal.WithLabelValues(norm(outcome)).Inc() }

func IncWebhookRejected(reason string) { webhookRejectedTotal.WithLabelValues(norm(reason)).Inc() }
