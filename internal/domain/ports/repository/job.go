package repository

import (
	"context"
	"time"

	"invoice-ocr-platform/internal/domain/model"
)

// JobRepository is the durable job store and scheduler. Claim and the failure
// transitions are atomic with respect to concurrent workers.
type JobRepository interface {
	// Save upserts the job row by ID.
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)

	// ClaimNext selects the highest-priority eligible PENDING/RETRY job whose
	// tenant is below its concurrency cap, transitions it to PROCESSING and
	// stamps started_at. Rows locked by concurrent claimers are skipped, never
	// waited on. Returns domain.ErrNoEligibleJob when the queue is idle.
	ClaimNext(ctx context.Context) (*model.ClaimedJob, error)

	// Finalize transitions a PROCESSING job to a terminal state and stamps
	// finished_at. Only PROCESSING rows are affected.
	Finalize(ctx context.Context, tx Tx, id string, status model.JobStatus, outputPath, errMsg string) error

	// Requeue undoes a claim: the PROCESSING row goes back to RETRY,
	// immediately eligible, with retry_count untouched. For when the claimer
	// cannot run the job; an attempt that never started is not a failure.
	Requeue(ctx context.Context, tx Tx, id string) error

	// RecordFailure increments retry_count and either schedules a RETRY with
	// exponential backoff or, once retry_count reaches max_retries, marks the
	// job FAILED. Returns the resulting status and retry count.
	RecordFailure(ctx context.Context, tx Tx, id string, errMsg string) (model.JobStatus, int, error)

	// SweepStuck resets PROCESSING jobs whose started_at is older than the
	// timeout back to RETRY, making them immediately eligible again. Returns
	// the number of jobs reset.
	SweepStuck(ctx context.Context, timeout time.Duration) (int, error)

	CountByTenantAndStatus(ctx context.Context, tx Tx, tenantID string, status model.JobStatus) (int, error)
}
