package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/repository"
	"invoice-ocr-platform/internal/infra/metrics"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

type JobUseCase interface {
	// Admit debits the tenant's credits and enqueues a PENDING job in one
	// atomic transaction: either both the debit and the job row commit, or
	// neither does. Billing failures surface as domain errors the caller can
	// branch on.
	Admit(ctx context.Context, tenantID, inputPath string, priority int) (*model.Job, error)

	// Status returns the job for polling; output_ref is populated for
	// completed jobs.
	Status(ctx context.Context, jobID string) (*model.Job, error)
}

type jobUC struct {
	jobs       repository.JobRepository
	billing    BillingUseCase
	tm         repository.TransactionManager
	maxRetries int
	log        *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	billing BillingUseCase,
	tm repository.TransactionManager,
	maxRetries int,
	log *zerolog.Logger,
) *jobUC {
	return &jobUC{
		jobs:       jobs,
		billing:    billing,
		tm:         tm,
		maxRetries: maxRetries,
		log:        log,
	}
}

func (u *jobUC) Admit(ctx context.Context, tenantID, inputPath string, priority int) (*model.Job, error) {
	if tenantID == "" || inputPath == "" {
		return nil, domain.ErrInvalidArgument
	}

	job := model.NewJob(tenantID, inputPath, priority, u.maxRetries)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// The job row goes in first so the debit's ledger entry can reference
		// it; nothing is visible outside the transaction until the debit has
		// succeeded and both commit together.
		if err := u.jobs.Save(ctx, tx, job); err != nil {
			return err
		}
		sub, err := u.billing.DebitForJob(ctx, tx, tenantID, job.ID)
		if err != nil {
			return err
		}
		// Untouched caller priority of 0 falls back to the plan's level.
		if priority <= 0 && sub.Plan.PriorityLevel > 0 && job.Priority != sub.Plan.PriorityLevel {
			job.Priority = sub.Plan.PriorityLevel
			return u.jobs.Save(ctx, tx, job)
		}
		return nil
	})
	if err != nil {
		if isBillingRejection(err) {
			metrics.IncDebit(debitOutcome(err))
			metrics.IncJobAdmitted("billing_rejected")
		}
		return nil, err
	}

	metrics.IncDebit("ok")
	metrics.IncJobAdmitted("ok")
	u.log.Info().
		Str("job_id", job.ID).
		Str("tenant_id", tenantID).
		Int("priority", job.Priority).
		Msg("job admitted")
	return job, nil
}

func (u *jobUC) Status(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.jobs.FindByID(ctx, nil, jobID)
}

func isBillingRejection(err error) bool {
	return errors.Is(err, domain.ErrInsufficientCredits) ||
		errors.Is(err, domain.ErrNoActiveSubscription) ||
		errors.Is(err, domain.ErrSubscriptionExpired)
}

func debitOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, domain.ErrNoActiveSubscription):
		return "no_subscription"
	case errors.Is(err, domain.ErrSubscriptionExpired):
		return "expired"
	default:
		return "error"
	}
}
