//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// MockTxManager runs the callback immediately without a real transaction.
// Assign WithTxFunc to control transaction behavior in specific tests.
type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// memBillingRepo is a small in-memory billing store used by unit tests.
type memBillingRepo struct {
	mu       sync.Mutex
	accounts map[string]int64
	ledger   []*model.LedgerEntry
	// lockHook runs inside GetAccountForUpdate, standing in for whatever a
	// concurrent transaction commits while the lock is held.
	lockHook func()
}

var _ repository.BillingRepository = (*memBillingRepo)(nil)

func newMemBillingRepo() *memBillingRepo {
	return &memBillingRepo{accounts: make(map[string]int64)}
}

func (m *memBillingRepo) GetAccountForUpdate(ctx context.Context, tx repository.Tx, tenantID string) (*model.BillingAccount, error) {
	if m.lockHook != nil {
		m.lockHook()
	}
	return m.GetAccount(ctx, tx, tenantID)
}

func (m *memBillingRepo) GetAccount(_ context.Context, _ repository.Tx, tenantID string) (*model.BillingAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credits, ok := m.accounts[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.BillingAccount{TenantID: tenantID, Credits: credits, UpdatedAt: time.Now()}, nil
}

func (m *memBillingRepo) CreateAccount(_ context.Context, _ repository.Tx, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[tenantID]; !ok {
		m.accounts[tenantID] = 0
	}
	return nil
}

func (m *memBillingRepo) ApplyDelta(_ context.Context, _ repository.Tx, tenantID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[tenantID]; !ok {
		return domain.ErrNotFound
	}
	m.accounts[tenantID] += delta
	return nil
}

func (m *memBillingRepo) AppendLedger(_ context.Context, _ repository.Tx, entry *model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.ledger = append(m.ledger, &cp)
	return nil
}

func (m *memBillingRepo) SumLedger(_ context.Context, _ repository.Tx, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.ledger {
		if e.TenantID == tenantID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (m *memBillingRepo) ListLedger(_ context.Context, _ repository.Tx, tenantID string, limit, offset int) ([]*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LedgerEntry
	for _, e := range m.ledger {
		if e.TenantID == tenantID {
			cp := *e
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// memPaymentTxRepo keys transactions by (provider, reference), matching the
// unique constraint of the real store.
type memPaymentTxRepo struct {
	mu    sync.Mutex
	byRef map[string]*model.PaymentTransaction
}

var _ repository.PaymentTxRepository = (*memPaymentTxRepo)(nil)

func newMemPaymentTxRepo() *memPaymentTxRepo {
	return &memPaymentTxRepo{byRef: make(map[string]*model.PaymentTransaction)}
}

func refKey(provider, reference string) string { return provider + "|" + reference }

func (m *memPaymentTxRepo) InsertOrFetch(_ context.Context, _ repository.Tx, p *model.PaymentTransaction) (*model.PaymentTransaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := refKey(p.Provider, p.ExternalReference)
	if existing, ok := m.byRef[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *p
	m.byRef[key] = &cp
	out := cp
	return &out, true, nil
}

func (m *memPaymentTxRepo) FindByReference(_ context.Context, _ repository.Tx, provider, reference string) (*model.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byRef[refKey(provider, reference)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentTxRepo) MarkStatus(_ context.Context, _ repository.Tx, id string, status model.PaymentTxStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byRef {
		if p.ID == id {
			if p.Status.IsTerminal() {
				return domain.ErrTerminalPayment
			}
			p.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memPaymentTxRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentTransaction
	for _, p := range m.byRef {
		if p.Status == model.PaymentTxStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// memSubRepo serves one configurable active subscription per tenant.
type memSubRepo struct {
	mu     sync.Mutex
	active map[string]*model.ActiveSubscription
}

var _ repository.SubscriptionRepository = (*memSubRepo)(nil)

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{active: make(map[string]*model.ActiveSubscription)}
}

func (m *memSubRepo) Save(_ context.Context, _ repository.Tx, s *model.TenantSubscription) error {
	return fmt.Errorf("not implemented")
}

func (m *memSubRepo) FindActiveWithPlan(_ context.Context, _ repository.Tx, tenantID string) (*model.ActiveSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.active[tenantID]
	if !ok {
		return nil, domain.ErrNoActiveSubscription
	}
	cp := *sub
	return &cp, nil
}

func (m *memSubRepo) setActive(tenantID string, plan model.SubscriptionPlan, periodEnd time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[tenantID] = &model.ActiveSubscription{
		Subscription: model.TenantSubscription{
			ID:               "sub-" + tenantID,
			TenantID:         tenantID,
			PlanID:           plan.ID,
			Status:           model.SubscriptionStatusActive,
			CurrentPeriodEnd: periodEnd,
		},
		Plan: plan,
	}
}

// memJobRepo stores jobs by ID. Claim and the retry machinery are covered by
// the database tests; here only Save and FindByID carry real behavior.
type memJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	saveErr error
}

var _ repository.JobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*model.Job)}
}

func (m *memJobRepo) Save(_ context.Context, _ repository.Tx, job *model.Job) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ClaimNext(context.Context) (*model.ClaimedJob, error) {
	return nil, domain.ErrNoEligibleJob
}

func (m *memJobRepo) Finalize(_ context.Context, _ repository.Tx, id string, status model.JobStatus, outputPath, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrInvalidTransition
	}
	j.Status = status
	j.OutputPath = outputPath
	j.Error = errMsg
	return nil
}

func (m *memJobRepo) Requeue(_ context.Context, _ repository.Tx, id string) error {
	return fmt.Errorf("not implemented")
}

func (m *memJobRepo) RecordFailure(_ context.Context, _ repository.Tx, id string, errMsg string) (model.JobStatus, int, error) {
	return "", 0, fmt.Errorf("not implemented")
}

func (m *memJobRepo) SweepStuck(context.Context, time.Duration) (int, error) { return 0, nil }

func (m *memJobRepo) CountByTenantAndStatus(_ context.Context, _ repository.Tx, tenantID string, status model.JobStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.TenantID == tenantID && j.Status == status {
			n++
		}
	}
	return n, nil
}
