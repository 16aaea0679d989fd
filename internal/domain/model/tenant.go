package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Tenant is an isolated customer account: the unit of billing, concurrency
// limiting and data partitioning. Identity is immutable; the plan may change.
type Tenant struct {
	ID           string
	Name         string
	APIKey       string
	SLAStatus    string
	BillingEmail string
	CreatedAt    time.Time
}

func NewTenant(name, billingEmail string) *Tenant {
	return &Tenant{
		ID:           uuid.NewString(),
		Name:         name,
		APIKey:       newAPIKey(),
		SLAStatus:    "standard",
		BillingEmail: billingEmail,
		CreatedAt:    time.Now(),
	}
}

func newAPIKey() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return "iok_" + hex.EncodeToString(b)
}
