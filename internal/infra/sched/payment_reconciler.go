package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"invoice-ocr-platform/internal/domain/ports/adapter"
	"invoice-ocr-platform/internal/domain/ports/repository"
	"invoice-ocr-platform/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending payments and tries
// to finalize them by querying the provider directly. This covers callbacks
// that were lost or arrived while the process was down.
type PaymentReconciler struct {
	uc         usecase.BillingUseCase
	payments   repository.PaymentTxRepository
	gateway    adapter.PaymentGateway
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	uc usecase.BillingUseCase,
	payments repository.PaymentTxRepository,
	gateway adapter.PaymentGateway,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	recLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		uc:         uc,
		payments:   payments,
		gateway:    gateway,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &recLog,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending payments error")
		return
	}
	for _, p := range pending {
		status, err := w.gateway.Verify(ctx, p.ExternalReference, p.Amount)
		if err != nil {
			w.log.Warn().Err(err).Str("reference", p.ExternalReference).Msg("provider verify failed")
			continue
		}
		res, err := w.uc.Reconcile(ctx, usecase.PaymentNotice{
			TenantID:  p.TenantID,
			Provider:  p.Provider,
			Reference: p.ExternalReference,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Status:    status,
		})
		if err != nil {
			w.log.Error().Err(err).Str("reference", p.ExternalReference).Msg("reconcile failed")
			continue
		}
		if res.Outcome != usecase.ReconcilePending {
			w.log.Info().
				Str("reference", p.ExternalReference).
				Str("outcome", string(res.Outcome)).
				Int64("credits_added", res.CreditsAdded).
				Msg("stale payment reconciled")
		}
	}
}
