package adapter

import "context"

// PaymentGateway queries a payment provider for the settlement state of a
// transaction. The reconciler uses it to re-drive payments whose webhook was
// lost or arrived while the process was down.
type PaymentGateway interface {
	// Verify returns the provider's status string for the reference,
	// e.g. "SUCCESSFUL", "FAILED" or "PENDING".
	Verify(ctx context.Context, reference string, amount int64) (status string, err error)
}
