package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrOperationFailed    = errors.New("operation failed")

	// Billing errors callers are expected to branch on
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrSubscriptionExpired  = errors.New("subscription has expired")
	ErrAlreadyProcessed     = errors.New("payment already processed")
	ErrConversionTooSmall   = errors.New("payment amount too low to convert to credits")

	// Queue errors
	ErrNoEligibleJob     = errors.New("no eligible job to claim")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrTerminalPayment   = errors.New("payment transaction is terminal")
)
