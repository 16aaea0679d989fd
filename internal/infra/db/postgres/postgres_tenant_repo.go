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

var _ repository.TenantRepository = (*tenantRepo)(nil)

type tenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *tenantRepo {
	return &tenantRepo{pool: pool}
}

func (r *tenantRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	const q = `
INSERT INTO tenants (id, name, api_key, sla_status, billing_email, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  name=EXCLUDED.name, api_key=EXCLUDED.api_key, sla_status=EXCLUDED.sla_status, billing_email=EXCLUDED.billing_email;`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.Name, t.APIKey, t.SLAStatus, t.BillingEmail, t.CreatedAt)
	return err
}

const tenantColumns = `id, name, api_key, sla_status, billing_email, created_at`

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	var (
		t     model.Tenant
		key   *string
		email *string
	)
	if err := row.Scan(&t.ID, &t.Name, &key, &t.SLAStatus, &email, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if key != nil {
		t.APIKey = *key
	}
	if email != nil {
		t.BillingEmail = *email
	}
	return &t, nil
}

func (r *tenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+tenantColumns+` FROM tenants WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanTenant(row)
}

func (r *tenantRepo) FindByAPIKey(ctx context.Context, tx repository.Tx, apiKey string) (*model.Tenant, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+tenantColumns+` FROM tenants WHERE api_key=$1;`, apiKey)
	if err != nil {
		return nil, err
	}
	return scanTenant(row)
}

func (r *tenantRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Tenant, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at ASC LIMIT $1 OFFSET $2;`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
