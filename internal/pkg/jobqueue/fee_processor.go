package jobqueue

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/metrics/counter"
)

// FeeRunner is the part of the fee service the queue drives.
type FeeRunner interface {
	ApplyFeeRuleFromJob(ctx context.Context, id uint, asOf time.Time) (fees.GenerationResult, error)
	RunSweep(ctx context.Context, today time.Time) (*fees.SweepReport, error)
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
}

// RegisterFeeProcessors wires the fee job types to runner.
func RegisterFeeProcessors(q *Queue, runner FeeRunner) {
	q.RegisterProcessor(JobTypeApplyFeeRule, applyFeeRuleProcessor(runner))
	q.RegisterProcessor(JobTypeFeeSweep, feeSweepProcessor(q.client, runner))
	q.RegisterProcessor(JobTypeMarkOverdue, markOverdueProcessor(runner))
}

func applyFeeRuleProcessor(runner FeeRunner) Processor {
	return func(ctx context.Context, job *Job) (map[string]interface{}, error) {
		payload, err := ApplyFeeRuleJobPayloadFromMap(job.Payload)
		if err != nil {
			return nil, Permanent(errors.Wrap(err, "invalid apply_fee_rule payload"))
		}
		if payload.FeeRuleID == 0 {
			return nil, Permanent(errors.New("apply_fee_rule payload without fee_rule_id"))
		}
		asOf, err := parseAsOf(payload.AsOf)
		if err != nil {
			return nil, Permanent(errors.Wrapf(err, "invalid as_of %q", payload.AsOf))
		}

		log.Infof("[FeeJob] Applying fee rule %d (as of %q, requested by %d)", payload.FeeRuleID, payload.AsOf, payload.RequestedBy)
		result, err := runner.ApplyFeeRuleFromJob(ctx, payload.FeeRuleID, asOf)
		if err != nil {
			return nil, classifyFeeError(err)
		}
		return map[string]interface{}{
			"fee_rule_id": payload.FeeRuleID,
			"created":     result.Created,
			"skipped":     result.Skipped,
		}, nil
	}
}

func feeSweepProcessor(rdb *redis.Client, runner FeeRunner) Processor {
	return func(ctx context.Context, job *Job) (map[string]interface{}, error) {
		payload, err := FeeSweepJobPayloadFromMap(job.Payload)
		if err != nil {
			return nil, Permanent(errors.Wrap(err, "invalid fee_sweep payload"))
		}
		asOf, err := parseAsOf(payload.AsOf)
		if err != nil {
			return nil, Permanent(errors.Wrapf(err, "invalid as_of %q", payload.AsOf))
		}

		report, err := runner.RunSweep(ctx, asOf)
		if err != nil {
			return nil, classifyFeeError(err)
		}
		if err := counter.RecordSweep(ctx, rdb, report); err != nil {
			log.Warnf("[FeeJob] Failed to record sweep counters: %v", err)
		}
		return map[string]interface{}{
			"as_of":     report.AsOf.Format(time.DateOnly),
			"activated": len(report.Activated),
			"rules":     len(report.Rules),
			"created":   report.Created,
			"skipped":   report.Skipped,
			"failed":    report.Failed,
			"overdue":   report.Overdue,
		}, nil
	}
}

func markOverdueProcessor(runner FeeRunner) Processor {
	return func(ctx context.Context, job *Job) (map[string]interface{}, error) {
		payload, err := FeeSweepJobPayloadFromMap(job.Payload)
		if err != nil {
			return nil, Permanent(errors.Wrap(err, "invalid mark_overdue payload"))
		}
		asOf, err := parseAsOf(payload.AsOf)
		if err != nil {
			return nil, Permanent(errors.Wrapf(err, "invalid as_of %q", payload.AsOf))
		}

		n, err := runner.MarkOverdue(ctx, asOf)
		if err != nil {
			return nil, classifyFeeError(err)
		}
		return map[string]interface{}{"overdue": n}, nil
	}
}

// classifyFeeError stops retries for errors a second attempt cannot fix.
func classifyFeeError(err error) error {
	if fees.IsNotFound(err) || fees.IsValidation(err) || fees.IsInvalidState(err) {
		return Permanent(err)
	}
	return err
}

// Enqueuer accepts new jobs; *Queue implements it.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error)
}

// EnqueueApplyFeeRule queues generation for one rule.
func EnqueueApplyFeeRule(ctx context.Context, q Enqueuer, ruleID uint, asOf time.Time, requestedBy uint) (*Job, error) {
	payload := ApplyFeeRuleJobPayload{FeeRuleID: ruleID, RequestedBy: requestedBy}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format(asOfLayout)
	}
	return q.EnqueueJob(ctx, JobTypeApplyFeeRule, payload.ToMap())
}

// EnqueueMarkOverdue queues the overdue check on its own.
func EnqueueMarkOverdue(ctx context.Context, q Enqueuer, asOf time.Time, requestedBy uint) (*Job, error) {
	payload := FeeSweepJobPayload{RequestedBy: requestedBy}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format(asOfLayout)
	}
	return q.EnqueueJob(ctx, JobTypeMarkOverdue, payload.ToMap())
}

// EnqueueFeeSweep queues a full sweep.
func EnqueueFeeSweep(ctx context.Context, q Enqueuer, asOf time.Time, requestedBy uint) (*Job, error) {
	payload := FeeSweepJobPayload{RequestedBy: requestedBy}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format(asOfLayout)
	}
	return q.EnqueueJob(ctx, JobTypeFeeSweep, payload.ToMap())
}
