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

var _ repository.BillingRepository = (*billingRepo)(nil)

type billingRepo struct {
	pool *pgxpool.Pool
}

func NewBillingRepo(pool *pgxpool.Pool) *billingRepo {
	return &billingRepo{pool: pool}
}

func (r *billingRepo) GetAccountForUpdate(ctx context.Context, tx repository.Tx, tenantID string) (*model.BillingAccount, error) {
	if _, ok := tx.(pgx.Tx); !ok {
		return nil, domain.ErrInvalidExecContext
	}
	const q = `SELECT tenant_id, credits, updated_at FROM billing_accounts WHERE tenant_id=$1 FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func (r *billingRepo) GetAccount(ctx context.Context, tx repository.Tx, tenantID string) (*model.BillingAccount, error) {
	const q = `SELECT tenant_id, credits, updated_at FROM billing_accounts WHERE tenant_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*model.BillingAccount, error) {
	var a model.BillingAccount
	if err := row.Scan(&a.TenantID, &a.Credits, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *billingRepo) CreateAccount(ctx context.Context, tx repository.Tx, tenantID string) error {
	const q = `INSERT INTO billing_accounts (tenant_id, credits) VALUES ($1, 0) ON CONFLICT (tenant_id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, tenantID)
	return err
}

func (r *billingRepo) ApplyDelta(ctx context.Context, tx repository.Tx, tenantID string, delta int64) error {
	const q = `UPDATE billing_accounts SET credits = credits + $2, updated_at = NOW() WHERE tenant_id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, tenantID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *billingRepo) AppendLedger(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry) error {
	const q = `
INSERT INTO billing_ledger (id, tenant_id, job_id, event_type, amount, description, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q,
		entry.ID, entry.TenantID, entry.JobID, entry.EventType, entry.Amount, entry.Description, entry.CreatedAt)
	return err
}

func (r *billingRepo) SumLedger(ctx context.Context, tx repository.Tx, tenantID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM billing_ledger WHERE tenant_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *billingRepo) ListLedger(ctx context.Context, tx repository.Tx, tenantID string, limit, offset int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const q = `
SELECT id, tenant_id, job_id, event_type, amount, description, created_at
FROM billing_ledger
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		var (
			e     model.LedgerEntry
			event string
			desc  *string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.JobID, &event, &e.Amount, &desc, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EventType = model.LedgerEventType(event)
		if desc != nil {
			e.Description = *desc
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
