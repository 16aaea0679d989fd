package repository

import (
	"context"

	"invoice-ocr-platform/internal/domain/model"
)

// BillingRepository owns billing accounts and the append-only ledger.
// ApplyDelta and AppendLedger are always called together inside one
// transaction; the ledger is never updated or deleted.
type BillingRepository interface {
	// GetAccountForUpdate locks the tenant's balance row for the duration of
	// the surrounding transaction. Requires a non-nil tx.
	GetAccountForUpdate(ctx context.Context, tx Tx, tenantID string) (*model.BillingAccount, error)
	GetAccount(ctx context.Context, tx Tx, tenantID string) (*model.BillingAccount, error)
	// CreateAccount inserts a zero-balance account, ignoring duplicates.
	CreateAccount(ctx context.Context, tx Tx, tenantID string) error
	// ApplyDelta adjusts the balance by delta (negative for debits).
	ApplyDelta(ctx context.Context, tx Tx, tenantID string, delta int64) error
	AppendLedger(ctx context.Context, tx Tx, entry *model.LedgerEntry) error
	SumLedger(ctx context.Context, tx Tx, tenantID string) (int64, error)
	ListLedger(ctx context.Context, tx Tx, tenantID string, limit, offset int) ([]*model.LedgerEntry, error)
}
