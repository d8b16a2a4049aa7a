package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeForwardEvents delivers extracted events downstream
	JobTypeForwardEvents JobType = "forward_events"
	// JobTypeMemoryAdd stores a conversation memory
	JobTypeMemoryAdd JobType = "memory_add"
)

// Job represents a job in the queue. Identity travels on the job itself:
// workers run without a request context, so ProfileID and UserID must be
// explicit rather than ambient.
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       JobType         `json:"type"`
	ProfileID  int64           `json:"profile_id"`
	UserID     int64           `json:"user_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	NotBefore  *time.Time      `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time      `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, profileID, userID int64, payload json.RawMessage) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		ProfileID:  profileID,
		UserID:     userID,
		Payload:    payload,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
