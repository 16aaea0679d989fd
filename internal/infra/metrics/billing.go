package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		debitsTotal,
		creditsGrantedTotal,
		ledgerEntriesTotal,
	)
}

var (
	debitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_debits_total",
			Help: "Debit attempts by outcome (ok/insufficient_credits/no_subscription/expired).",
		},
		[]string{"outcome"},
	)

	creditsGrantedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_credits_granted_total",
			Help: "Credits granted through payment top-ups.",
		},
	)

	ledgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_ledger_entries_total",
			Help: "Ledger entries appended, labeled by event type.",
		},
		[]string{"event_type"},
	)
)

func IncDebit(outcome string) { debitsTotal.WithLabelValues(norm(outcome)).Inc() }

func AddCreditsGranted(credits int64) { creditsGrantedTotal.Add(float64(credits)) }

func IncLedgerEntry(eventType string) { ledgerEntriesTotal.WithLabelValues(norm(eventType)).Inc() }
