package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"invoice-ocr-platform/internal/domain"
	"invoice-ocr-platform/internal/domain/model"
	"invoice-ocr-platform/internal/domain/ports/repository"
)

var _ repository.PaymentTxRepository = (*paymentTxRepo)(nil)

type paymentTxRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentTxRepo(pool *pgxpool.Pool) *paymentTxRepo {
	return &paymentTxRepo{pool: pool}
}

const paymentColumns = `id, tenant_id, provider, external_reference, amount, currency, status, metadata, created_at`

func scanPayment(row pgx.Row) (*model.PaymentTransaction, error) {
	var (
		p      model.PaymentTransaction
		status string
	)
	if err := row.Scan(&p.ID, &p.TenantID, &p.Provider, &p.ExternalReference,
		&p.Amount, &p.Currency, &status, &p.Metadata, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Status = model.PaymentTxStatus(status)
	return &p, nil
}

// InsertOrFetch races the unique (provider, external_reference) constraint:
// the first caller inserts a pending row, every later caller gets the
// existing row back. ON CONFLICT DO NOTHING means the losing insert returns
// no row rather than an error.
func (r *paymentTxRepo) InsertOrFetch(ctx context.Context, tx repository.Tx, p *model.PaymentTransaction) (*model.PaymentTransaction, bool, error) {
	const ins = `
INSERT INTO payment_transactions (id, tenant_id, provider, external_reference, amount, currency, status, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (provider, external_reference) DO NOTHING
RETURNING ` + paymentColumns + `;`

	row, err := pickRow(ctx, r.pool, tx, ins,
		p.ID, p.TenantID, p.Provider, p.ExternalReference, p.Amount, p.Currency, p.Status, p.Metadata, p.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	inserted, err := scanPayment(row)
	if err == nil {
		return inserted, true, nil
	}
	var pgErr *pgconn.PgError
	if !errors.Is(err, domain.ErrNotFound) && !(errors.As(err, &pgErr) && pgErr.Code == "23505") {
		return nil, false, err
	}

	// Lost the race (or the row predates us): fetch the winner's row.
	existing, err := r.FindByReference(ctx, tx, p.Provider, p.ExternalReference)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *paymentTxRepo) FindByReference(ctx context.Context, tx repository.Tx, provider, reference string) (*model.PaymentTransaction, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE provider=$1 AND external_reference=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, provider, reference)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// MarkStatus refuses to move a terminal transaction; success and failed are
// final states.
func (r *paymentTxRepo) MarkStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentTxStatus) error {
	const q = `UPDATE payment_transactions SET status=$2 WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTerminalPayment
	}
	return nil
}

func (r *paymentTxRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + paymentColumns + `
FROM payment_transactions
WHERE status='pending' AND created_at < $1
ORDER BY created_at ASC
LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		var (
			p      model.PaymentTransaction
			status string
		)
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Provider, &p.ExternalReference,
			&p.Amount, &p.Currency, &status, &p.Metadata, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = model.PaymentTxStatus(status)
		out = append(out, &p)
	}
	return out, rows.Err()
}
