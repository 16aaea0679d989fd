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

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, description, monthly_price, credits_included, credit_cost, priority_level, rate_limit_per_min, max_concurrent_jobs, created_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	const q = `
INSERT INTO subscription_plans (name, description, monthly_price, credits_included, credit_cost, priority_level, rate_limit_per_min, max_concurrent_jobs)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (name) DO UPDATE SET
  description=EXCLUDED.description, monthly_price=EXCLUDED.monthly_price,
  credits_included=EXCLUDED.credits_included, credit_cost=EXCLUDED.credit_cost,
  priority_level=EXCLUDED.priority_level, rate_limit_per_min=EXCLUDED.rate_limit_per_min,
  max_concurrent_jobs=EXCLUDED.max_concurrent_jobs
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, p.Name, p.Description, p.MonthlyPrice,
		p.CreditsIncluded, p.CreditCost, p.PriorityLevel, p.RateLimitPerMin, p.MaxConcurrentJobs)
	if err != nil {
		return err
	}
	return row.Scan(&p.ID)
}

func scanPlan(row pgx.Row) (*model.SubscriptionPlan, error) {
	var (
		p    model.SubscriptionPlan
		desc *string
	)
	if err := row.Scan(&p.ID, &p.Name, &desc, &p.MonthlyPrice, &p.CreditsIncluded,
		&p.CreditCost, &p.PriorityLevel, &p.RateLimitPerMin, &p.MaxConcurrentJobs, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if desc != nil {
		p.Description = *desc
	}
	return &p, nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id int) (*model.SubscriptionPlan, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+planColumns+` FROM subscription_plans WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.SubscriptionPlan, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+planColumns+` FROM subscription_plans WHERE name=$1;`, name)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) List(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY id ASC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
