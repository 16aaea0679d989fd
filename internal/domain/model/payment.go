package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentTxStatus string

const (
	PaymentTxStatusPending PaymentTxStatus = "pending" // awaiting provider outcome
	PaymentTxStatusSuccess PaymentTxStatus = "success" // credited; terminal
	PaymentTxStatusFailed  PaymentTxStatus = "failed"  // rejected by provider; terminal
)

func (s PaymentTxStatus) IsTerminal() bool {
	return s == PaymentTxStatusSuccess || s == PaymentTxStatusFailed
}

// PaymentTransaction records one external payment attempt. The pair
// (Provider, ExternalReference) is unique in storage; that constraint is what
// makes reconciliation idempotent under duplicate webhook delivery.
type PaymentTransaction struct {
	ID                string
	TenantID          string
	Provider          string
	ExternalReference string
	Amount            int64 // minor units of Currency
	Currency          string
	Status            PaymentTxStatus
	Metadata          map[string]interface{} // raw provider payload, stored as JSONB
	CreatedAt         time.Time
}

func NewPendingPayment(tenantID, provider, reference string, amount int64, currency string) *PaymentTransaction {
	return &PaymentTransaction{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		Provider:          provider,
		ExternalReference: reference,
		Amount:            amount,
		Currency:          currency,
		Status:            PaymentTxStatusPending,
		CreatedAt:         time.Now(),
	}
}
