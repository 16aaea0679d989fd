//go:build !integration

package web_test

import (
	"context"
	"time"

	"invoice-ocr-platform/internal/config"
	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/repository"
	"invoice-ocr-platform/internal/infra/logging"
	red "invoice-ocr-platform/internal/infra/redis"
	"invoice-ocr-platform/internal/infra/web"
	"invoice-ocr-platform/internal/usecase"
)

const (
	testAPIKey        = "iok_test_key"
	testWebhookSecret = "hook-secret"
	testAdminPassword = "hunter2"
)

type mockJobUC struct {
	AdmitFunc  func(ctx context.Context, tenantID, inputPath string, priority int) (*model.Job, error)
	StatusFunc func(ctx context.Context, jobID string) (*model.Job, error)
}

var _ usecase.JobUseCase = (*mockJobUC)(nil)

func (m *mockJobUC) Admit(ctx context.Context, tenantID, inputPath string, priority int) (*model.Job, error) {
	if m.AdmitFunc != nil {
		return m.AdmitFunc(ctx, tenantID, inputPath, priority)
	}
	return model.NewJob(tenantID, inputPath, priority, 3), nil
}

func (m *mockJobUC) Status(ctx context.Context, jobID string) (*model.Job, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, jobID)
	}
	return nil, domain.ErrNotFound
}

type mockBillingUC struct {
	ReconcileFunc func(ctx context.Context, n usecase.PaymentNotice) (*usecase.ReconcileResult, error)
	PendingFunc   func(ctx context.Context, tenantID, provider, reference string, amount int64, currency string) error
	BalanceFunc   func(ctx context.Context, tenantID string) (int64, error)
}

var _ usecase.BillingUseCase = (*mockBillingUC)(nil)

func (m *mockBillingUC) DebitForJob(context.Context, repository.Tx, string, string) (*model.ActiveSubscription, error) {
	return nil, domain.ErrNoActiveSubscription
}

func (m *mockBillingUC) Reconcile(ctx context.Context, n usecase.PaymentNotice) (*usecase.ReconcileResult, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, n)
	}
	return &usecase.ReconcileResult{Outcome: usecase.ReconcileReconciled, CreditsAdded: 10}, nil
}

func (m *mockBillingUC) RecordPendingPayment(ctx context.Context, tenantID, provider, reference string, amount int64, currency string) error {
	if m.PendingFunc != nil {
		return m.PendingFunc(ctx, tenantID, provider, reference, amount, currency)
	}
	return nil
}

func (m *mockBillingUC) Balance(ctx context.Context, tenantID string) (int64, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx, tenantID)
	}
	return 0, nil
}

func (m *mockBillingUC) Ledger(context.Context, string, int, int) ([]*model.LedgerEntry, error) {
	return nil, nil
}

type mockTenantRepo struct {
	tenant *model.Tenant
	saved  []*model.Tenant
}

var _ repository.TenantRepository = (*mockTenantRepo)(nil)

func (m *mockTenantRepo) Save(_ context.Context, _ repository.Tx, t *model.Tenant) error {
	m.saved = append(m.saved, t)
	return nil
}

func (m *mockTenantRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Tenant, error) {
	if m.tenant != nil && m.tenant.ID == id {
		return m.tenant, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockTenantRepo) FindByAPIKey(_ context.Context, _ repository.Tx, key string) (*model.Tenant, error) {
	if m.tenant != nil && m.tenant.APIKey == key {
		return m.tenant, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockTenantRepo) List(context.Context, repository.Tx, int, int) ([]*model.Tenant, error) {
	if m.tenant == nil {
		return nil, nil
	}
	return []*model.Tenant{m.tenant}, nil
}

type mockSubRepo struct {
	sub *model.ActiveSubscription
}

var _ repository.SubscriptionRepository = (*mockSubRepo)(nil)

func (m *mockSubRepo) Save(context.Context, repository.Tx, *model.TenantSubscription) error {
	return nil
}

func (m *mockSubRepo) FindActiveWithPlan(context.Context, repository.Tx, string) (*model.ActiveSubscription, error) {
	if m.sub == nil {
		return nil, domain.ErrNoActiveSubscription
	}
	return m.sub, nil
}

// fakeRedis is an in-memory counter standing in for the shared store.
type fakeRedis struct {
	counts map[string]int64
}

var _ red.RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis { return &fakeRedis{counts: make(map[string]int64)} }

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (f *fakeRedis) Get(context.Context, string) (string, error) { return "", nil }

func (f *fakeRedis) Incr(_ context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) Expire(context.Context, string, time.Duration) error { return nil }

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.counts, k)
	}
	return nil
}

func (f *fakeRedis) Close() error { return nil }

type serverDeps struct {
	jobs    *mockJobUC
	billing *mockBillingUC
	tenants *mockTenantRepo
	subs    *mockSubRepo
	redis   *fakeRedis
}

func newServerDeps() *serverDeps {
	return &serverDeps{
		jobs:    &mockJobUC{},
		billing: &mockBillingUC{},
		tenants: &mockTenantRepo{tenant: &model.Tenant{ID: "tenant-1", Name: "acme", APIKey: testAPIKey}},
		subs:    &mockSubRepo{},
		redis:   newFakeRedis(),
	}
}

func newTestServer(d *serverDeps) *web.Server {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           0,
			AdminJWTSecret: "jwt-secret",
			AdminPassword:  testAdminPassword,
			SessionTTL:     time.Minute,
		},
		Billing: config.BillingConfig{
			CreditConversionRate: 100,
			WebhookSecret:        testWebhookSecret,
			DefaultCurrency:      "RWF",
		},
		RateLimit: config.RateLimitConfig{Window: time.Minute, DefaultPerWindow: 5},
		Runtime:   config.RuntimeConfig{Dev: true},
	}
	logger := logging.New(config.LogConfig{Level: "error", Format: "json"}, false)
	return web.NewServer(cfg, d.jobs, d.billing, d.tenants, d.subs, red.NewRateLimiter(d.redis), logger)
}
