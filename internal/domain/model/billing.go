package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// BillingAccount holds the credit balance for one tenant. The balance is only
// ever mutated inside a row-locking transaction together with a matching
// ledger entry.
type BillingAccount struct {
	TenantID  string
	Credits   int64
	UpdatedAt time.Time
}

type LedgerEventType string

const (
	LedgerEventJobDebit    LedgerEventType = "JOB_DEBIT"
	LedgerEventCreditTopup LedgerEventType = "CREDIT_TOPUP"
)

// LedgerEntry is an immutable, append-only record of a single balance change.
// Summing all entries for a tenant must reconstruct the account balance.
type LedgerEntry struct {
	ID          string
	TenantID    string
	JobID       *string
	EventType   LedgerEventType
	Amount      int64 // signed: negative for debits
	Description string
	CreatedAt   time.Time
}

// NewLedgerEntry stamps a ULID so entries sort by creation order within the
// append log.
func NewLedgerEntry(tenantID string, jobID *string, event LedgerEventType, amount int64, description string) *LedgerEntry {
	now := time.Now()
	return &LedgerEntry{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		TenantID:    tenantID,
		JobID:       jobID,
		EventType:   event,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
	}
}
