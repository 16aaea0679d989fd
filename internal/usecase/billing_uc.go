package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/repository"
	"invoice-ocr-platform/internal/infra/metrics"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

// ReconcileOutcome classifies what a reconciliation call did.
type ReconcileOutcome string

const (
	ReconcileReconciled       ReconcileOutcome = "reconciled"
	ReconcileAlreadyProcessed ReconcileOutcome = "already_processed"
	ReconcileFailed           ReconcileOutcome = "failed"
	ReconcilePending          ReconcileOutcome = "pending"
)

// ReconcileResult reports the outcome and, when credits were granted, how many.
type ReconcileResult struct {
	Outcome      ReconcileOutcome
	CreditsAdded int64
}

// PaymentNotice is a normalized external payment notification.
type PaymentNotice struct {
	TenantID  string
	Provider  string
	Reference string
	Amount    int64 // minor currency units
	Currency  string
	Status    string // provider status, normalized by normalizePaymentStatus
	Raw       map[string]interface{}
}

type BillingUseCase interface {
	// DebitForJob resolves the tenant's active subscription, locks the balance
	// row, debits the plan's credit cost and appends a JOB_DEBIT ledger entry.
	// Must run inside the caller's transaction so the debit commits together
	// with the job insert. Returns the resolved subscription.
	DebitForJob(ctx context.Context, tx repository.Tx, tenantID, jobID string) (*model.ActiveSubscription, error)

	// Reconcile applies an external payment notification exactly once.
	// Duplicate deliveries of a settled payment return already_processed and
	// change nothing.
	Reconcile(ctx context.Context, notice PaymentNotice) (*ReconcileResult, error)

	// RecordPendingPayment stores an initiated payment so the later webhook
	// has a row to match against. Duplicate references are ignored.
	RecordPendingPayment(ctx context.Context, tenantID, provider, reference string, amount int64, currency string) error

	Balance(ctx context.Context, tenantID string) (int64, error)
	Ledger(ctx context.Context, tenantID string, limit, offset int) ([]*model.LedgerEntry, error)
}

type billingUC struct {
	billing  repository.BillingRepository
	payments repository.PaymentTxRepository
	subs     repository.SubscriptionRepository
	tm       repository.TransactionManager
	// conversionRate is minor currency units per credit.
	conversionRate int64
	log            *zerolog.Logger
}

func NewBillingUseCase(
	billing repository.BillingRepository,
	payments repository.PaymentTxRepository,
	subs repository.SubscriptionRepository,
	tm repository.TransactionManager,
	conversionRate int64,
	log *zerolog.Logger,
) *billingUC {
	if conversionRate <= 0 {
		conversionRate = 100
	}
	return &billingUC{
		billing:        billing,
		payments:       payments,
		subs:           subs,
		tm:             tm,
		conversionRate: conversionRate,
		log:            log,
	}
}

func (u *billingUC) DebitForJob(ctx context.Context, tx repository.Tx, tenantID, jobID string) (*model.ActiveSubscription, error) {
	sub, err := u.subs.FindActiveWithPlan(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.Subscription.Expired(time.Now()) {
		return nil, domain.ErrSubscriptionExpired
	}
	cost := sub.Plan.CreditCost

	acct, err := u.billing.GetAccountForUpdate(ctx, tx, tenantID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrInsufficientCredits
		}
		return nil, err
	}
	if acct.Credits < cost {
		return nil, domain.ErrInsufficientCredits
	}

	if err := u.billing.ApplyDelta(ctx, tx, tenantID, -cost); err != nil {
		return nil, err
	}
	entry := model.NewLedgerEntry(tenantID, &jobID, model.LedgerEventJobDebit, -cost,
		fmt.Sprintf("invoice processing: job %s", jobID))
	if err := u.billing.AppendLedger(ctx, tx, entry); err != nil {
		return nil, err
	}

	metrics.IncLedgerEntry(string(model.LedgerEventJobDebit))
	return sub, nil
}

func (u *billingUC) Reconcile(ctx context.Context, notice PaymentNotice) (*ReconcileResult, error) {
	if notice.Reference == "" || notice.Provider == "" || notice.TenantID == "" {
		return nil, domain.ErrInvalidArgument
	}

	res := &ReconcileResult{Outcome: ReconcilePending}
	creditedTenant := notice.TenantID
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p := model.NewPendingPayment(notice.TenantID, notice.Provider, notice.Reference, notice.Amount, notice.Currency)
		p.Metadata = notice.Raw
		existing, inserted, err := u.payments.InsertOrFetch(ctx, tx, p)
		if err != nil {
			return err
		}
		if !inserted && existing.Status.IsTerminal() {
			// Duplicate delivery of a settled payment; nothing to do.
			if existing.Status == model.PaymentTxStatusSuccess {
				res.Outcome = ReconcileAlreadyProcessed
			} else {
				res.Outcome = ReconcileFailed
			}
			return nil
		}
		// The stored row owns the payment; a notification naming another
		// tenant must not redirect the credit.
		owner := existing.TenantID
		creditedTenant = owner

		switch normalizePaymentStatus(notice.Status) {
		case model.PaymentTxStatusSuccess:
			credits := notice.Amount / u.conversionRate
			if credits <= 0 {
				return domain.ErrConversionTooSmall
			}
			if err := u.billing.CreateAccount(ctx, tx, owner); err != nil {
				return err
			}
			if _, err := u.billing.GetAccountForUpdate(ctx, tx, owner); err != nil {
				return err
			}
			if !inserted {
				// A concurrent delivery of the same pending payment may have
				// settled it while this transaction waited on the balance
				// lock; re-read before crediting.
				current, err := u.payments.FindByReference(ctx, tx, existing.Provider, existing.ExternalReference)
				if err != nil {
					return err
				}
				if current.Status.IsTerminal() {
					if current.Status == model.PaymentTxStatusSuccess {
						res.Outcome = ReconcileAlreadyProcessed
					} else {
						res.Outcome = ReconcileFailed
					}
					return nil
				}
			}
			if err := u.billing.ApplyDelta(ctx, tx, owner, credits); err != nil {
				return err
			}
			if err := u.payments.MarkStatus(ctx, tx, existing.ID, model.PaymentTxStatusSuccess); err != nil {
				return err
			}
			entry := model.NewLedgerEntry(owner, nil, model.LedgerEventCreditTopup, credits,
				fmt.Sprintf("top-up ref %s via %s", notice.Reference, notice.Provider))
			if err := u.billing.AppendLedger(ctx, tx, entry); err != nil {
				return err
			}
			res.Outcome = ReconcileReconciled
			res.CreditsAdded = credits
			return nil

		case model.PaymentTxStatusFailed:
			if err := u.payments.MarkStatus(ctx, tx, existing.ID, model.PaymentTxStatusFailed); err != nil {
				return err
			}
			res.Outcome = ReconcileFailed
			return nil

		default:
			// Leave the transaction pending for a later callback or the
			// reconciler sweep.
			res.Outcome = ReconcilePending
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	metrics.IncReconcile(string(res.Outcome))
	if res.Outcome == ReconcileReconciled {
		metrics.AddCreditsGranted(res.CreditsAdded)
		metrics.IncLedgerEntry(string(model.LedgerEventCreditTopup))
		u.log.Info().
			Str("tenant_id", creditedTenant).
			Str("provider", notice.Provider).
			Str("reference", notice.Reference).
			Int64("amount", notice.Amount).
			Int64("credits_added", res.CreditsAdded).
			Msg("payment credited")
	}
	return res, nil
}

func (u *billingUC) RecordPendingPayment(ctx context.Context, tenantID, provider, reference string, amount int64, currency string) error {
	if reference == "" || provider == "" || tenantID == "" {
		return domain.ErrInvalidArgument
	}
	p := model.NewPendingPayment(tenantID, provider, reference, amount, currency)
	_, _, err := u.payments.InsertOrFetch(ctx, nil, p)
	return err
}

func (u *billingUC) Balance(ctx context.Context, tenantID string) (int64, error) {
	acct, err := u.billing.GetAccount(ctx, nil, tenantID)
	if err != nil {
		if err == domain.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return acct.Credits, nil
}

func (u *billingUC) Ledger(ctx context.Context, tenantID string, limit, offset int) ([]*model.LedgerEntry, error) {
	return u.billing.ListLedger(ctx, nil, tenantID, limit, offset)
}

// normalizePaymentStatus maps provider status vocabulary onto the stored
// transaction states. Anything unrecognized stays pending.
func normalizePaymentStatus(raw string) model.PaymentTxStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESSFUL", "SUCCESS", "COMPLETED":
		return model.PaymentTxStatusSuccess
	case "FAILED", "REJECTED":
		return model.PaymentTxStatusFailed
	default:
		return model.PaymentTxStatusPending
	}
}
