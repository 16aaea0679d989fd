package model

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending        JobStatus = "PENDING"
	JobStatusProcessing     JobStatus = "PROCESSING"
	JobStatusCompleted      JobStatus = "COMPLETED"
	JobStatusReviewRequired JobStatus = "REVIEW_REQUIRED"
	JobStatusRetry          JobStatus = "RETRY"
	JobStatusFailed         JobStatus = "FAILED"
)

// IsTerminal reports whether no further transition is permitted.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusReviewRequired || s == JobStatusFailed
}

// Job is a single unit of billable work. Jobs are never deleted; terminal
// rows are retained for audit and metrics.
type Job struct {
	ID          string
	TenantID    string
	Status      JobStatus
	InputPath   string
	OutputPath  string
	Error       string
	Priority    int
	RetryCount  int
	MaxRetries  int
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	NextRetryAt *time.Time
}

func NewJob(tenantID, inputPath string, priority, maxRetries int) *Job {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if priority <= 0 {
		priority = 1
	}
	return &Job{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Status:     JobStatusPending,
		InputPath:  inputPath,
		Priority:   priority,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now(),
	}
}

// ClaimedJob is the slim projection handed to a worker by the scheduler.
type ClaimedJob struct {
	ID        string
	TenantID  string
	InputPath string
}
