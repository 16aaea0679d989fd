package repository

import (
	"context"
	"time"

	"invoice-ocr-platform/internal/domain/model"
)

// PaymentTxRepository stores external payment transactions. The unique
// (provider, external_reference) pair is the idempotency primitive for
// webhook reconciliation.
type PaymentTxRepository interface {
	// InsertOrFetch inserts p as pending; if a row with the same
	// (provider, external_reference) already exists it returns that row
	// instead. The returned bool is true when the insert won.
	InsertOrFetch(ctx context.Context, tx Tx, p *model.PaymentTransaction) (*model.PaymentTransaction, bool, error)
	FindByReference(ctx context.Context, tx Tx, provider, reference string) (*model.PaymentTransaction, error)
	// MarkStatus moves a non-terminal transaction to the given status.
	MarkStatus(ctx context.Context, tx Tx, id string, status model.PaymentTxStatus) error
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error)
}
