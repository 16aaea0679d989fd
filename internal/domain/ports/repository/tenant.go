package repository

import (
	"context"

	"invoice-ocr-platform/internal/domain/model"
)

type TenantRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Tenant) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tenant, error)
	FindByAPIKey(ctx context.Context, tx Tx, apiKey string) (*model.Tenant, error)
	List(ctx context.Context, tx Tx, limit, offset int) ([]*model.Tenant, error)
}

type PlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.SubscriptionPlan) error
	FindByID(ctx context.Context, tx Tx, id int) (*model.SubscriptionPlan, error)
	FindByName(ctx context.Context, tx Tx, name string) (*model.SubscriptionPlan, error)
	List(ctx context.Context, tx Tx) ([]*model.SubscriptionPlan, error)
}

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.TenantSubscription) error
	// FindActiveWithPlan resolves the tenant's active subscription joined with
	// its plan. Returns domain.ErrNoActiveSubscription when none is active.
	FindActiveWithPlan(ctx context.Context, tx Tx, tenantID string) (*model.ActiveSubscription, error)
}
