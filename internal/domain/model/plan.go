package model

import "time"

// SubscriptionPlan bounds a tenant's credit cost per job, queue priority,
// request rate and concurrent job count.
type SubscriptionPlan struct {
	ID                int
	Name              string
	Description       string
	MonthlyPrice      int64 // minor currency units
	CreditsIncluded   int64
	CreditCost        int64 // credits debited per job
	PriorityLevel     int
	RateLimitPerMin   int
	MaxConcurrentJobs int
	CreatedAt         time.Time
}
