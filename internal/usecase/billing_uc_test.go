//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/usecase"
)

type billingUCTestDeps struct {
	billing  *memBillingRepo
	payments *memPaymentTxRepo
	subs     *memSubRepo
	tm       *MockTxManager
}

func newBillingUCDeps() *billingUCTestDeps {
	return &billingUCTestDeps{
		billing:  newMemBillingRepo(),
		payments: newMemPaymentTxRepo(),
		subs:     newMemSubRepo(),
		tm:       NewMockTxManager(),
	}
}

func (d *billingUCTestDeps) uc() usecase.BillingUseCase {
	return usecase.NewBillingUseCase(d.billing, d.payments, d.subs, d.tm, 100, newTestLogger())
}

var proPlan = model.SubscriptionPlan{ID: 2, Name: "pro", CreditCost: 5, PriorityLevel: 5, RateLimitPerMin: 60, MaxConcurrentJobs: 10}

func TestBillingUseCase_DebitForJob(t *testing.T) {
	ctx := context.Background()

	t.Run("should debit the plan cost and append a ledger entry", func(t *testing.T) {
		// --- Arrange ---
		deps := newBillingUCDeps()
		deps.subs.setActive("tenant-1", proPlan, time.Now().Add(24*time.Hour))
		deps.billing.accounts["tenant-1"] = 20

		// --- Act ---
		sub, err := deps.uc().DebitForJob(ctx, nil, "tenant-1", "job-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sub.Plan.Name != "pro" {
			t.Errorf("expected resolved plan 'pro', got %q", sub.Plan.Name)
		}
		acct, _ := deps.billing.GetAccount(ctx, nil, "tenant-1")
		if acct.Credits != 15 {
			t.Errorf("expected balance 15 after debit, got %d", acct.Credits)
		}
		if len(deps.billing.ledger) != 1 {
			t.Fatalf("expected 1 ledger entry, got %d", len(deps.billing.ledger))
		}
		entry := deps.billing.ledger[0]
		if entry.EventType != model.LedgerEventJobDebit {
			t.Errorf("expected JOB_DEBIT entry, got %s", entry.EventType)
		}
		if entry.Amount != -5 {
			t.Errorf("expected ledger amount -5, got %d", entry.Amount)
		}
		if entry.JobID == nil || *entry.JobID != "job-1" {
			t.Error("expected ledger entry to reference the job")
		}
	})

	t.Run("should reject when balance is below the plan cost", func(t *testing.T) {
		deps := newBillingUCDeps()
		deps.subs.setActive("tenant-1", proPlan, time.Now().Add(24*time.Hour))
		deps.billing.accounts["tenant-1"] = 4

		_, err := deps.uc().DebitForJob(ctx, nil, "tenant-1", "job-1")

		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
		acct, _ := deps.billing.GetAccount(ctx, nil, "tenant-1")
		if acct.Credits != 4 {
			t.Errorf("balance must be untouched on rejection, got %d", acct.Credits)
		}
		if len(deps.billing.ledger) != 0 {
			t.Error("no ledger entry may be written on rejection")
		}
	})

	t.Run("should reject a tenant with no billing account", func(t *testing.T) {
		deps := newBillingUCDeps()
		deps.subs.setActive("tenant-1", proPlan, time.Now().Add(24*time.Hour))

		_, err := deps.uc().DebitForJob(ctx, nil, "tenant-1", "job-1")

		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
	})

	t.Run("should reject a tenant without an active subscription", func(t *testing.T) {
		deps := newBillingUCDeps()
		deps.billing.accounts["tenant-1"] = 100

		_, err := deps.uc().DebitForJob(ctx, nil, "tenant-1", "job-1")

		if !errors.Is(err, domain.ErrNoActiveSubscription) {
			t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
		}
	})

	t.Run("should reject an expired subscription period", func(t *testing.T) {
		deps := newBillingUCDeps()
		deps.subs.setActive("tenant-1", proPlan, time.Now().Add(-time.Hour))
		deps.billing.accounts["tenant-1"] = 100

		_, err := deps.uc().DebitForJob(ctx, nil, "tenant-1", "job-1")

		if !errors.Is(err, domain.ErrSubscriptionExpired) {
			t.Fatalf("expected ErrSubscriptionExpired, got %v", err)
		}
	})
}

func TestBillingUseCase_Reconcile(t *testing.T) {
	ctx := context.Background()

	notice := usecase.PaymentNotice{
		TenantID:  "tenant-1",
		Provider:  "mtn",
		Reference: "ref-001",
		Amount:    1500,
		Currency:  "RWF",
		Status:    "SUCCESSFUL",
	}

	t.Run("should credit the converted amount on success", func(t *testing.T) {
		deps := newBillingUCDeps()

		res, err := deps.uc().Reconcile(ctx, notice)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Outcome != usecase.ReconcileReconciled {
			t.Fatalf("expected outcome reconciled, got %s", res.Outcome)
		}
		if res.CreditsAdded != 15 {
			t.Errorf("expected 15 credits (1500/100), got %d", res.CreditsAdded)
		}
		acct, err := deps.billing.GetAccount(ctx, nil, "tenant-1")
		if err != nil {
			t.Fatalf("account should exist after top-up: %v", err)
		}
		if acct.Credits != 15 {
			t.Errorf("expected balance 15, got %d", acct.Credits)
		}
		stored, _ := deps.payments.FindByReference(ctx, nil, "mtn", "ref-001")
		if stored.Status != model.PaymentTxStatusSuccess {
			t.Errorf("expected transaction marked success, got %s", stored.Status)
		}
	})

	t.Run("should be idempotent under duplicate delivery", func(t *testing.T) {
		deps := newBillingUCDeps()
		uc := deps.uc()

		if _, err := uc.Reconcile(ctx, notice); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		res, err := uc.Reconcile(ctx, notice)
		if err != nil {
			t.Fatalf("second delivery: %v", err)
		}

		if res.Outcome != usecase.ReconcileAlreadyProcessed {
			t.Fatalf("expected already_processed, got %s", res.Outcome)
		}
		if res.CreditsAdded != 0 {
			t.Errorf("duplicate delivery must grant no credits, got %d", res.CreditsAdded)
		}
		acct, _ := deps.billing.GetAccount(ctx, nil, "tenant-1")
		if acct.Credits != 15 {
			t.Errorf("balance must stay at 15 after duplicate, got %d", acct.Credits)
		}
		sum, _ := deps.billing.SumLedger(ctx, nil, "tenant-1")
		if sum != acct.Credits {
			t.Errorf("ledger sum %d must equal balance %d", sum, acct.Credits)
		}
	})

	t.Run("should mark failed payments without touching the balance", func(t *testing.T) {
		deps := newBillingUCDeps()
		failed := notice
		failed.Status = "FAILED"

		res, err := deps.uc().Reconcile(ctx, failed)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Outcome != usecase.ReconcileFailed {
			t.Fatalf("expected outcome failed, got %s", res.Outcome)
		}
		if _, err := deps.billing.GetAccount(ctx, nil, "tenant-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Error("failed payment must not create a billing account")
		}
	})

	t.Run("should reject amounts below one credit", func(t *testing.T) {
		deps := newBillingUCDeps()
		tiny := notice
		tiny.Amount = 50

		_, err := deps.uc().Reconcile(ctx, tiny)

		if !errors.Is(err, domain.ErrConversionTooSmall) {
			t.Fatalf("expected ErrConversionTooSmall, got %v", err)
		}
	})

	t.Run("should leave unknown provider statuses pending", func(t *testing.T) {
		deps := newBillingUCDeps()
		odd := notice
		odd.Status = "IN_FLIGHT"

		res, err := deps.uc().Reconcile(ctx, odd)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Outcome != usecase.ReconcilePending {
			t.Fatalf("expected outcome pending, got %s", res.Outcome)
		}
		stored, _ := deps.payments.FindByReference(ctx, nil, "mtn", "ref-001")
		if stored.Status != model.PaymentTxStatusPending {
			t.Errorf("expected transaction still pending, got %s", stored.Status)
		}
	})

	t.Run("should report already_processed when a rival delivery settles first", func(t *testing.T) {
		deps := newBillingUCDeps()
		uc := deps.uc()

		if err := uc.RecordPendingPayment(ctx, "tenant-1", "mtn", "ref-001", 1500, "RWF"); err != nil {
			t.Fatalf("record pending: %v", err)
		}
		stored, err := deps.payments.FindByReference(ctx, nil, "mtn", "ref-001")
		if err != nil {
			t.Fatalf("find pending: %v", err)
		}
		// A concurrent delivery commits its credit while this one waits on
		// the balance lock.
		deps.billing.lockHook = func() {
			_ = deps.payments.MarkStatus(ctx, nil, stored.ID, model.PaymentTxStatusSuccess)
		}

		res, err := uc.Reconcile(ctx, notice)

		if err != nil {
			t.Fatalf("losing the race must not surface an error, got %v", err)
		}
		if res.Outcome != usecase.ReconcileAlreadyProcessed {
			t.Fatalf("expected already_processed, got %s", res.Outcome)
		}
		if res.CreditsAdded != 0 {
			t.Errorf("the loser must grant no credits, got %d", res.CreditsAdded)
		}
		if len(deps.billing.ledger) != 0 {
			t.Errorf("the loser must write no ledger entries, got %d", len(deps.billing.ledger))
		}
	})

	t.Run("should credit the tenant that recorded the pending payment", func(t *testing.T) {
		deps := newBillingUCDeps()
		uc := deps.uc()

		if err := uc.RecordPendingPayment(ctx, "tenant-1", "mtn", "ref-001", 1500, "RWF"); err != nil {
			t.Fatalf("record pending: %v", err)
		}
		hijacked := notice
		hijacked.TenantID = "tenant-2"

		res, err := uc.Reconcile(ctx, hijacked)

		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Outcome != usecase.ReconcileReconciled {
			t.Fatalf("expected reconciled, got %s", res.Outcome)
		}
		acct, err := deps.billing.GetAccount(ctx, nil, "tenant-1")
		if err != nil {
			t.Fatalf("recorded owner must hold the credit: %v", err)
		}
		if acct.Credits != 15 {
			t.Errorf("expected owner balance 15, got %d", acct.Credits)
		}
		if _, err := deps.billing.GetAccount(ctx, nil, "tenant-2"); !errors.Is(err, domain.ErrNotFound) {
			t.Error("the tenant named by the notification must not be credited")
		}
		if len(deps.billing.ledger) != 1 || deps.billing.ledger[0].TenantID != "tenant-1" {
			t.Error("the ledger entry must belong to the recorded owner")
		}
	})

	t.Run("should settle a pending transaction left by a prior delivery", func(t *testing.T) {
		deps := newBillingUCDeps()
		uc := deps.uc()

		if err := uc.RecordPendingPayment(ctx, "tenant-1", "mtn", "ref-001", 1500, "RWF"); err != nil {
			t.Fatalf("record pending: %v", err)
		}
		res, err := uc.Reconcile(ctx, notice)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}

		if res.Outcome != usecase.ReconcileReconciled {
			t.Fatalf("expected reconciled, got %s", res.Outcome)
		}
		acct, _ := deps.billing.GetAccount(ctx, nil, "tenant-1")
		if acct.Credits != 15 {
			t.Errorf("expected balance 15, got %d", acct.Credits)
		}
	})
}

func TestBillingUseCase_RecordPendingPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate references are ignored", func(t *testing.T) {
		deps := newBillingUCDeps()
		uc := deps.uc()

		if err := uc.RecordPendingPayment(ctx, "tenant-1", "mtn", "ref-9", 1000, "RWF"); err != nil {
			t.Fatalf("first record: %v", err)
		}
		if err := uc.RecordPendingPayment(ctx, "tenant-1", "mtn", "ref-9", 1000, "RWF"); err != nil {
			t.Fatalf("second record must not fail: %v", err)
		}
		if len(deps.payments.byRef) != 1 {
			t.Errorf("expected a single stored transaction, got %d", len(deps.payments.byRef))
		}
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		deps := newBillingUCDeps()
		if err := deps.uc().RecordPendingPayment(ctx, "", "mtn", "ref-9", 1000, "RWF"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestBillingUseCase_Balance(t *testing.T) {
	ctx := context.Background()

	t.Run("missing account reads as zero", func(t *testing.T) {
		deps := newBillingUCDeps()
		credits, err := deps.uc().Balance(ctx, "tenant-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if credits != 0 {
			t.Errorf("expected 0 credits, got %d", credits)
		}
	})
}
