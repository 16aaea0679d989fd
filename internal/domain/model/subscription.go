package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// TenantSubscription links a tenant to a plan for a billing period.
type TenantSubscription struct {
	ID                 string
	TenantID           string
	PlanID             int
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	AutoRenew          bool
	CreatedAt          time.Time
}

func NewTenantSubscription(tenantID string, planID int, start, end time.Time) *TenantSubscription {
	return &TenantSubscription{
		ID:                 uuid.NewString(),
		TenantID:           tenantID,
		PlanID:             planID,
		Status:             SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		AutoRenew:          true,
		CreatedAt:          time.Now(),
	}
}

// Expired reports whether the subscription's period has elapsed at t.
func (s *TenantSubscription) Expired(t time.Time) bool {
	return s.CurrentPeriodEnd.Before(t)
}

// ActiveSubscription is a subscription joined with its plan, as resolved by
// the billing debit path.
type ActiveSubscription struct {
	Subscription TenantSubscription
	Plan         SubscriptionPlan
}
