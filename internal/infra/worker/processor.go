package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/adapter"
	"invoice-ocr-platform/internal/domain/ports/repository"
	"invoice-ocr-platform/internal/infra/logging"
	"invoice-ocr-platform/internal/infra/metrics"
)

// Processor polls the job store and fans claimed jobs out to the pool. Each
// claimed job is processed to a terminal or RETRY state; crashes in between
// are covered by the janitor's sweep.
type Processor struct {
	jobs     repository.JobRepository
	pipeline adapter.ExtractionPipeline
	pool     *Pool
	interval time.Duration
	log      *zerolog.Logger
}

func NewProcessor(
	jobs repository.JobRepository,
	pipeline adapter.ExtractionPipeline,
	pool *Pool,
	pollInterval time.Duration,
	log *zerolog.Logger,
) *Processor {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Processor{jobs: jobs, pipeline: pipeline, pool: pool, interval: pollInterval, log: log}
}

// Run polls until ctx is canceled. On every tick it drains the queue: claims
// keep going until the store reports no eligible job or the pool saturates.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().Dur("poll_interval", p.interval).Msg("processor started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("processor stopped")
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Processor) drain(ctx context.Context) {
	for {
		// Don't claim what the pool can't take; a claim without capacity
		// would only bounce straight back to the queue.
		if !p.pool.Spare() {
			return
		}
		claimed, err := p.jobs.ClaimNext(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNoEligibleJob) && ctx.Err() == nil {
				p.log.Error().Err(err).Msg("claim failed")
			}
			return
		}
		metrics.IncJobClaimed()

		job := claimed
		if err := p.pool.Submit(func(ctx context.Context) error {
			return p.ProcessOne(ctx, job)
		}); err != nil {
			// Lost the capacity race after claiming. Hand the job back
			// untouched; not running it is not a failed attempt.
			if rerr := p.jobs.Requeue(ctx, nil, job.ID); rerr != nil {
				p.log.Error().Err(rerr).Str("job_id", job.ID).Msg("requeue after submit failure")
			}
			return
		}
	}
}

// ProcessOne runs the pipeline for a single claimed job and records the
// outcome. Pipeline errors and FAILED results go through the retry state
// machine; success and review outcomes finalize the job.
func (p *Processor) ProcessOne(ctx context.Context, job *model.ClaimedJob) error {
	ctx = logging.WithJobID(logging.WithTenantID(ctx, job.TenantID), job.ID)
	log := logging.With(ctx, p.log)
	start := time.Now()

	res, err := p.pipeline.Process(ctx, job.InputPath, job.TenantID)
	if err != nil {
		return p.recordFailure(ctx, log, job.ID, err.Error())
	}

	switch res.Status {
	case adapter.ExtractionOK, adapter.ExtractionAutoFixed:
		if err := p.jobs.Finalize(ctx, nil, job.ID, model.JobStatusCompleted, res.OutputPath, ""); err != nil {
			return err
		}
		metrics.IncJobFinished(string(model.JobStatusCompleted))
		metrics.ObserveJobDuration(time.Since(start).Seconds())
		log.Info().Str("output_path", res.OutputPath).Dur("took", time.Since(start)).Msg("job completed")
		return nil

	case adapter.ExtractionNeedsReview:
		if err := p.jobs.Finalize(ctx, nil, job.ID, model.JobStatusReviewRequired, res.OutputPath, ""); err != nil {
			return err
		}
		metrics.IncJobFinished(string(model.JobStatusReviewRequired))
		metrics.ObserveJobDuration(time.Since(start).Seconds())
		log.Info().Msg("job flagged for review")
		return nil

	default:
		return p.recordFailure(ctx, log, job.ID, "extraction failed")
	}
}

func (p *Processor) recordFailure(ctx context.Context, log *zerolog.Logger, jobID, errMsg string) error {
	status, retries, err := p.jobs.RecordFailure(ctx, nil, jobID, errMsg)
	if err != nil {
		return err
	}
	if status == model.JobStatusFailed {
		metrics.IncJobFinished(string(model.JobStatusFailed))
		log.Error().Int("retry_count", retries).Str("error", errMsg).Msg("job failed permanently")
	} else {
		metrics.IncJobRetry()
		log.Warn().Int("retry_count", retries).Str("error", errMsg).Msg("job scheduled for retry")
	}
	return nil
}
