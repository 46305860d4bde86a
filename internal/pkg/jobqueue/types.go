package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeApplyFeeRule JobType = "apply_fee_rule"
	JobTypeFeeSweep     JobType = "fee_sweep"
	JobTypeMarkOverdue  JobType = "mark_overdue"
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

// asOfLayout is the wire format of the as_of payload field.
const asOfLayout = time.DateOnly

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	Result      map[string]interface{} `json:"result,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ApplyFeeRuleJobPayload contains the payload for a single rule generation
type ApplyFeeRuleJobPayload struct {
	FeeRuleID   uint   `json:"fee_rule_id"`
	AsOf        string `json:"as_of"`        // YYYY-MM-DD, empty means the processing day
	RequestedBy uint   `json:"requested_by"` // Admin member ID
}

// ToMap converts the payload to a map for storage
func (p ApplyFeeRuleJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"fee_rule_id":  p.FeeRuleID,
		"as_of":        p.AsOf,
		"requested_by": p.RequestedBy,
	}
}

// ApplyFeeRuleJobPayloadFromMap creates a payload from a map
func ApplyFeeRuleJobPayloadFromMap(data map[string]interface{}) (*ApplyFeeRuleJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ApplyFeeRuleJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// FeeSweepJobPayload contains the payload for sweep and overdue jobs
type FeeSweepJobPayload struct {
	AsOf        string `json:"as_of"`
	RequestedBy uint   `json:"requested_by,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p FeeSweepJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"as_of": p.AsOf,
	}
	if p.RequestedBy != 0 {
		m["requested_by"] = p.RequestedBy
	}
	return m
}

// FeeSweepJobPayloadFromMap creates a payload from a map
func FeeSweepJobPayloadFromMap(data map[string]interface{}) (*FeeSweepJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload FeeSweepJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// parseAsOf reads an as_of value; empty yields the zero time.
func parseAsOf(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(asOfLayout, value, time.Local)
}

// IsRetryable checks if the job can be retried
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
func (j *Job) MarkAsCompleted(result map[string]interface{}) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
	j.Result = result
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
