package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool       *pgxpool.Pool
	defaultCap int // per-tenant PROCESSING cap when no plan bounds it
}

func NewJobRepo(pool *pgxpool.Pool, defaultConcurrency int) *jobRepo {
	if defaultConcurrency <= 0 {
		defaultConcurrency = 3
	}
	return &jobRepo{pool: pool, defaultCap: defaultConcurrency}
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, tenant_id, status, input_path, output_path, error, priority, retry_count, max_retries, created_at, started_at, finished_at, next_retry_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  output_path = EXCLUDED.output_path,
  error = EXCLUDED.error,
  priority = EXCLUDED.priority,
  retry_count = EXCLUDED.retry_count,
  started_at = EXCLUDED.started_at,
  finished_at = EXCLUDED.finished_at,
  next_retry_at = EXCLUDED.next_retry_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.TenantID, job.Status, job.InputPath, job.OutputPath, job.Error,
		job.Priority, job.RetryCount, job.MaxRetries, job.CreatedAt, job.StartedAt, job.FinishedAt, job.NextRetryAt)
	return err
}

const jobColumns = `id, tenant_id, status, input_path, output_path, error, priority, retry_count, max_retries, created_at, started_at, finished_at, next_retry_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j      model.Job
		status string
		input  *string
		output *string
		errMsg *string
	)
	if err := row.Scan(&j.ID, &j.TenantID, &status, &input, &output, &errMsg,
		&j.Priority, &j.RetryCount, &j.MaxRetries, &j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.NextRetryAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	j.Status = model.JobStatus(status)
	if input != nil {
		j.InputPath = *input
	}
	if output != nil {
		j.OutputPath = *output
	}
	if errMsg != nil {
		j.Error = *errMsg
	}
	return &j, nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// ClaimNext runs the whole selection inside a single row-locking statement:
// eligible PENDING/RETRY jobs whose tenant has spare concurrency, highest
// priority first, earliest creation first. SKIP LOCKED keeps concurrent
// claimers from blocking on or double-claiming the same candidate.
func (r *jobRepo) ClaimNext(ctx context.Context) (*model.ClaimedJob, error) {
	const q = `
UPDATE jobs
SET status = 'PROCESSING',
    started_at = NOW()
WHERE id = (
    SELECT j.id
    FROM jobs j
    WHERE j.status IN ('PENDING', 'RETRY')
      AND (j.next_retry_at IS NULL OR j.next_retry_at <= NOW())
      AND (
          SELECT COUNT(*)
          FROM jobs running
          WHERE running.tenant_id = j.tenant_id AND running.status = 'PROCESSING'
      ) < COALESCE((
          SELECT p.max_concurrent_jobs
          FROM tenant_subscriptions s
          JOIN subscription_plans p ON p.id = s.plan_id
          WHERE s.tenant_id = j.tenant_id AND s.status = 'active'
          ORDER BY s.current_period_end DESC
          LIMIT 1
      ), $1)
    ORDER BY j.priority DESC, j.created_at ASC
    LIMIT 1
    FOR UPDATE OF j SKIP LOCKED
)
RETURNING id, input_path, tenant_id;`

	var claimed model.ClaimedJob
	var input *string
	err := r.pool.QueryRow(ctx, q, r.defaultCap).Scan(&claimed.ID, &input, &claimed.TenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoEligibleJob
		}
		return nil, err
	}
	if input != nil {
		claimed.InputPath = *input
	}
	return &claimed, nil
}

func (r *jobRepo) Finalize(ctx context.Context, tx repository.Tx, id string, status model.JobStatus, outputPath, errMsg string) error {
	if !status.IsTerminal() {
		return domain.ErrInvalidTransition
	}
	const q = `
UPDATE jobs
SET status = $2, output_path = NULLIF($3, ''), error = NULLIF($4, ''), finished_at = NOW()
WHERE id = $1 AND status = 'PROCESSING';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status, outputPath, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// Requeue hands a claimed job back to the queue. The row returns to RETRY
// with next_retry_at = now and retry_count untouched, so a claim the worker
// could not act on does not spend an attempt.
func (r *jobRepo) Requeue(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE jobs
SET status = 'RETRY',
    started_at = NULL,
    next_retry_at = NOW()
WHERE id = $1 AND status = 'PROCESSING';`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// RecordFailure applies the retry state machine in one atomic statement:
// retry_count += 1; FAILED once it reaches max_retries, otherwise RETRY with
// next_retry_at = now + 2^retry_count minutes.
func (r *jobRepo) RecordFailure(ctx context.Context, tx repository.Tx, id string, errMsg string) (model.JobStatus, int, error) {
	const q = `
UPDATE jobs
SET retry_count = retry_count + 1,
    error = $2,
    status = CASE WHEN retry_count + 1 >= max_retries THEN 'FAILED' ELSE 'RETRY' END,
    finished_at = CASE WHEN retry_count + 1 >= max_retries THEN NOW() ELSE finished_at END,
    next_retry_at = CASE WHEN retry_count + 1 >= max_retries THEN NULL
                    ELSE NOW() + make_interval(mins => (2 ^ (retry_count + 1))::int) END
WHERE id = $1 AND status = 'PROCESSING'
RETURNING status, retry_count;`
	row, err := pickRow(ctx, r.pool, tx, q, id, errMsg)
	if err != nil {
		return "", 0, err
	}
	var status string
	var retries int
	if err := row.Scan(&status, &retries); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, domain.ErrInvalidTransition
		}
		return "", 0, err
	}
	return model.JobStatus(status), retries, nil
}

// SweepStuck is the janitor's lease-expiry pass over PROCESSING jobs.
func (r *jobRepo) SweepStuck(ctx context.Context, timeout time.Duration) (int, error) {
	const q = `
UPDATE jobs
SET status = 'RETRY',
    next_retry_at = NOW(),
    error = 'worker timeout: job reset by janitor'
WHERE status = 'PROCESSING'
  AND started_at <= NOW() - ($1 * interval '1 second');`
	tag, err := r.pool.Exec(ctx, q, timeout.Seconds())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *jobRepo) CountByTenantAndStatus(ctx context.Context, tx repository.Tx, tenantID string, status model.JobStatus) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM jobs WHERE tenant_id=$1 AND status=$2;`, tenantID, status)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
