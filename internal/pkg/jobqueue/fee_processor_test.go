package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
)

type fakeFeeRunner struct {
	appliedID   uint
	appliedAsOf time.Time
	sweptAsOf   time.Time
	overdueAsOf time.Time
	applyErr    error
}

func (f *fakeFeeRunner) ApplyFeeRuleFromJob(ctx context.Context, id uint, asOf time.Time) (fees.GenerationResult, error) {
	f.appliedID = id
	f.appliedAsOf = asOf
	if f.applyErr != nil {
		return fees.GenerationResult{}, f.applyErr
	}
	return fees.GenerationResult{Created: 3, Skipped: 1}, nil
}

func (f *fakeFeeRunner) RunSweep(ctx context.Context, today time.Time) (*fees.SweepReport, error) {
	f.sweptAsOf = today
	return &fees.SweepReport{
		AsOf:      time.Date(2024, time.June, 1, 0, 0, 0, 0, time.Local),
		Activated: []uint{4},
		Rules:     []fees.RuleOutcome{{RuleID: 4, Created: 2}, {RuleID: 5, Error: "boom"}},
		Created:   2,
		Failed:    1,
		Overdue:   7,
	}, nil
}

func (f *fakeFeeRunner) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	f.overdueAsOf = today
	return 5, nil
}

func registeredQueue(runner FeeRunner) *Queue {
	q := NewQueueWithClient(offlineClient(), 1)
	RegisterFeeProcessors(q, runner)
	return q
}

func run(t *testing.T, q *Queue, jobType JobType, payload map[string]interface{}) (map[string]interface{}, error) {
	t.Helper()
	p, ok := q.processor(jobType)
	require.True(t, ok, "no processor for %s", jobType)
	return p(context.Background(), &Job{Type: jobType, Payload: payload})
}

func TestApplyFeeRuleProcessor(t *testing.T) {
	runner := &fakeFeeRunner{}
	q := registeredQueue(runner)

	result, err := run(t, q, JobTypeApplyFeeRule, map[string]interface{}{
		"fee_rule_id": float64(12), "as_of": "2024-06-01", "requested_by": float64(1),
	})
	require.NoError(t, err)
	assert.Equal(t, uint(12), runner.appliedID)
	assert.Equal(t, "2024-06-01", runner.appliedAsOf.Format(time.DateOnly))
	assert.Equal(t, 3, result["created"])
	assert.Equal(t, 1, result["skipped"])

	_, err = run(t, q, JobTypeApplyFeeRule, map[string]interface{}{"fee_rule_id": float64(12)})
	require.NoError(t, err)
	assert.True(t, runner.appliedAsOf.IsZero(), "empty as_of defers to the service clock")
}

func TestApplyFeeRuleProcessorPermanentErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		runErr  error
		retry   bool
	}{
		{"Missing rule id", map[string]interface{}{}, nil, false},
		{"Bad date", map[string]interface{}{"fee_rule_id": float64(1), "as_of": "June 1st"}, nil, false},
		{"Rule not found", map[string]interface{}{"fee_rule_id": float64(1)}, errors.Mark(errors.New("fee rule 1 not found"), fees.ErrNotFound), false},
		{"Database down", map[string]interface{}{"fee_rule_id": float64(1)}, errors.New("dial tcp: connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := registeredQueue(&fakeFeeRunner{applyErr: tt.runErr})
			_, err := run(t, q, JobTypeApplyFeeRule, tt.payload)
			require.Error(t, err)
			assert.Equal(t, !tt.retry, errors.Is(err, ErrPermanent))
		})
	}
}

func TestFeeSweepProcessor(t *testing.T) {
	runner := &fakeFeeRunner{}
	q := registeredQueue(runner)

	result, err := run(t, q, JobTypeFeeSweep, map[string]interface{}{"as_of": "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", runner.sweptAsOf.Format(time.DateOnly))
	assert.Equal(t, map[string]interface{}{
		"as_of":     "2024-06-01",
		"activated": 1,
		"rules":     2,
		"created":   2,
		"skipped":   0,
		"failed":    1,
		"overdue":   int64(7),
	}, result)
}

func TestMarkOverdueProcessor(t *testing.T) {
	runner := &fakeFeeRunner{}
	q := registeredQueue(runner)

	result, err := run(t, q, JobTypeMarkOverdue, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, runner.overdueAsOf.IsZero())
	assert.Equal(t, int64(5), result["overdue"])
}

func TestEnqueueFeeJobs(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueueWithClient(client, 1)
	ctx := context.Background()

	job, err := EnqueueApplyFeeRule(ctx, q, 12, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.Local), 1)
	require.NoError(t, err)
	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobTypeApplyFeeRule, stored.Type)
	assert.Equal(t, "2024-06-01", stored.Payload["as_of"])
	assert.EqualValues(t, 12, stored.Payload["fee_rule_id"])

	sweep, err := EnqueueFeeSweep(ctx, q, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, sweep.Status)
	assert.Equal(t, "", sweep.Payload["as_of"])

	overdue, err := EnqueueMarkOverdue(ctx, q, time.Date(2024, time.June, 2, 0, 0, 0, 0, time.Local), 3)
	require.NoError(t, err)
	assert.Equal(t, JobTypeMarkOverdue, overdue.Type)
	assert.Equal(t, "2024-06-02", overdue.Payload["as_of"])

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)
}
