package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType(t *testing.T) {
	tests := []struct {
		name     string
		jobType  JobType
		expected string
	}{
		{"Apply fee rule", JobTypeApplyFeeRule, "apply_fee_rule"},
		{"Fee sweep", JobTypeFeeSweep, "fee_sweep"},
		{"Mark overdue", JobTypeMarkOverdue, "mark_overdue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.jobType))
		})
	}
}

func TestJobStatus(t *testing.T) {
	assert.Equal(t, "pending", string(JobStatusPending))
	assert.Equal(t, "processing", string(JobStatusProcessing))
	assert.Equal(t, "completed", string(JobStatusCompleted))
	assert.Equal(t, "failed", string(JobStatusFailed))
	assert.Equal(t, "retrying", string(JobStatusRetrying))
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{"Failed job with retries remaining", &Job{Status: JobStatusFailed, RetryCount: 1, MaxRetries: 3}, true},
		{"Failed job with no retries remaining", &Job{Status: JobStatusFailed, RetryCount: 3, MaxRetries: 3}, false},
		{"Completed job", &Job{Status: JobStatusCompleted, RetryCount: 1, MaxRetries: 3}, false},
		{"Pending job", &Job{Status: JobStatusPending, MaxRetries: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_StatusTransitions(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 3}

	beforeTime := time.Now()
	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)
	assert.False(t, job.ProcessedAt.Before(beforeTime))

	job.MarkAsFailed("database gone")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "database gone", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	job.MarkAsCompleted(map[string]interface{}{"created": 3})
	assert.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)
	assert.Equal(t, 3, job.Result["created"])
}

func TestApplyFeeRuleJobPayloadFromMap(t *testing.T) {
	// Payloads read back from Redis carry JSON numbers as float64
	data := map[string]interface{}{
		"fee_rule_id":  float64(12),
		"as_of":        "2024-06-01",
		"requested_by": float64(1),
	}

	payload, err := ApplyFeeRuleJobPayloadFromMap(data)
	require.NoError(t, err)
	assert.Equal(t, &ApplyFeeRuleJobPayload{FeeRuleID: 12, AsOf: "2024-06-01", RequestedBy: 1}, payload)

	_, err = ApplyFeeRuleJobPayloadFromMap(map[string]interface{}{"fee_rule_id": make(chan int)})
	assert.Error(t, err)
	_, err = ApplyFeeRuleJobPayloadFromMap(map[string]interface{}{"fee_rule_id": "twelve"})
	assert.Error(t, err)
}

func TestFeeSweepJobPayloadToMap(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"as_of": ""}, FeeSweepJobPayload{}.ToMap())
	assert.Equal(t, map[string]interface{}{"as_of": "2024-06-01", "requested_by": uint(4)},
		FeeSweepJobPayload{AsOf: "2024-06-01", RequestedBy: 4}.ToMap())
}

func TestParseAsOf(t *testing.T) {
	zero, err := parseAsOf("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	d, err := parseAsOf("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.February, d.Month())
	assert.Equal(t, 29, d.Day())

	_, err = parseAsOf("29.02.2024")
	assert.Error(t, err)
}
