package jobqueue

import (
	"encoding/json"
	"errors"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeAppealReady JobType = "appeal_ready_email"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

var ErrInvalidPayload = errors.New("jobqueue: invalid payload")

// AppealReadyJobPayload contains the payload for appeal-ready email jobs
type AppealReadyJobPayload struct {
	WorkUnitUUID string `json:"work_unit_uuid"`
	Email        string `json:"email"`
	ClaimNumber  string `json:"claim_number"`
	PayerName    string `json:"payer_name"`
	DocumentURL  string `json:"document_url"`
}

// ToMap converts the payload to a map for storage
func (p AppealReadyJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"work_unit_uuid": p.WorkUnitUUID,
		"email":          p.Email,
		"claim_number":   p.ClaimNumber,
		"payer_name":     p.PayerName,
		"document_url":   p.DocumentURL,
	}
}

func (p AppealReadyJobPayload) Validate() error {
	if p.WorkUnitUUID == "" || p.Email == "" {
		return ErrInvalidPayload
	}
	return nil
}

// AppealReadyJobPayloadFromMap creates a payload from a map
func AppealReadyJobPayloadFromMap(data map[string]interface{}) (*AppealReadyJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload AppealReadyJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable reports whether a failed job has retries left
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
