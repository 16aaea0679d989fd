package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"invoice-ocr-platform/internal/domain/ports/repository"
	"invoice-ocr-platform/internal/infra/metrics"
)

// Janitor periodically resets PROCESSING jobs that have outlived the worker
// lease. A crashed or wedged worker never finalizes its job; the sweep moves
// such jobs back to RETRY so another worker picks them up.
type Janitor struct {
	jobs     repository.JobRepository
	interval time.Duration
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewJanitor(jobs repository.JobRepository, interval, processingTimeout time.Duration, logger *zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if processingTimeout <= 0 {
		processingTimeout = 10 * time.Minute
	}
	janLog := logger.With().Str("component", "Janitor").Logger()
	return &Janitor{jobs: jobs, interval: interval, timeout: processingTimeout, log: &janLog}
}

func (w *Janitor) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("processing_timeout", w.timeout).Msg("Starting janitor")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping janitor")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Janitor) tick(ctx context.Context) {
	n, err := w.jobs.SweepStuck(ctx, w.timeout)
	if err != nil {
		w.log.Error().Err(err).Msg("janitor sweep error")
		return
	}
	if n > 0 {
		metrics.AddJanitorResets(n)
		w.log.Warn().Int("count", n).Msg("stuck jobs reset to retry")
	}
}
