package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.TenantSubscription) error {
	const q = `
INSERT INTO tenant_subscriptions (id, tenant_id, plan_id, status, current_period_start, current_period_end, auto_renew, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  plan_id=EXCLUDED.plan_id, status=EXCLUDED.status,
  current_period_start=EXCLUDED.current_period_start, current_period_end=EXCLUDED.current_period_end,
  auto_renew=EXCLUDED.auto_renew;`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.TenantID, s.PlanID, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd, s.AutoRenew, s.CreatedAt)
	return err
}

// FindActiveWithPlan resolves the debit cost source: the newest active
// subscription joined with its plan.
func (r *subscriptionRepo) FindActiveWithPlan(ctx context.Context, tx repository.Tx, tenantID string) (*model.ActiveSubscription, error) {
	const q = `
SELECT s.id, s.tenant_id, s.plan_id, s.status, s.current_period_start, s.current_period_end, s.auto_renew, s.created_at,
       p.id, p.name, p.description, p.monthly_price, p.credits_included, p.credit_cost, p.priority_level, p.rate_limit_per_min, p.max_concurrent_jobs, p.created_at
FROM tenant_subscriptions s
JOIN subscription_plans p ON p.id = s.plan_id
WHERE s.tenant_id = $1 AND s.status = 'active'
ORDER BY s.current_period_end DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return nil, err
	}

	var (
		as     model.ActiveSubscription
		status string
		desc   *string
	)
	if err := row.Scan(
		&as.Subscription.ID, &as.Subscription.TenantID, &as.Subscription.PlanID, &status,
		&as.Subscription.CurrentPeriodStart, &as.Subscription.CurrentPeriodEnd, &as.Subscription.AutoRenew, &as.Subscription.CreatedAt,
		&as.Plan.ID, &as.Plan.Name, &desc, &as.Plan.MonthlyPrice, &as.Plan.CreditsIncluded,
		&as.Plan.CreditCost, &as.Plan.PriorityLevel, &as.Plan.RateLimitPerMin, &as.Plan.MaxConcurrentJobs, &as.Plan.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoActiveSubscription
		}
		return nil, err
	}
	as.Subscription.Status = model.SubscriptionStatus(status)
	if desc != nil {
		as.Plan.Description = *desc
	}
	return &as, nil
}
