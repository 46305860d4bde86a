package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AgroCoop/app/repository"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/jobqueue"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/usercontext"
)

// JobQueue is the part of the job queue the API uses.
type JobQueue interface {
	jobqueue.Enqueuer
	GetJob(ctx context.Context, jobID string) (*jobqueue.Job, error)
}

// ============================================================================
// FEE RULE CONTROLLER (admin)
// ============================================================================

// FeeRuleController handles admin fee rule requests
type FeeRuleController struct {
	fees *fees.Service
	jobs JobQueue
}

// NewFeeRuleController creates the controller. jobs may be nil, which
// disables async triggers.
func NewFeeRuleController(svc *fees.Service, jobs JobQueue) *FeeRuleController {
	return &FeeRuleController{fees: svc, jobs: jobs}
}

// HandleListFeeRules lists fee rules, optionally filtered by ?status=
func (fc *FeeRuleController) HandleListFeeRules(c *fiber.Ctx) error {
	offset, limit := pageParams(c)
	rules, err := fc.fees.ListFeeRules(c.UserContext(), repository.FeeRuleFilter{
		Status: c.Query("status"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": rules, "offset": offset, "limit": limit})
}

// HandleCreateFeeRule creates a draft or scheduled rule
func (fc *FeeRuleController) HandleCreateFeeRule(c *fiber.Ctx) error {
	var req FeeRuleRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	in, err := req.toInput()
	if err != nil {
		return badRequest(c, "effective_date must be YYYY-MM-DD")
	}

	rule, err := fc.fees.CreateFeeRule(c.UserContext(), usercontext.GetMemberID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

// HandleGetFeeRule returns one rule
func (fc *FeeRuleController) HandleGetFeeRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	rule, err := fc.fees.GetFeeRule(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rule)
}

// HandleUpdateFeeRule replaces the editable fields of a rule
func (fc *FeeRuleController) HandleUpdateFeeRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	var req FeeRuleRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	in, err := req.toInput()
	if err != nil {
		return badRequest(c, "effective_date must be YYYY-MM-DD")
	}

	rule, err := fc.fees.UpdateFeeRule(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rule)
}

// HandleDeleteFeeRule soft deletes a rule without applications
func (fc *FeeRuleController) HandleDeleteFeeRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	if err := fc.fees.DeleteFeeRule(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleScheduleFeeRule moves a rule to scheduled
func (fc *FeeRuleController) HandleScheduleFeeRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	var req ScheduleRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	effective, err := parseDate(req.EffectiveDate)
	if err != nil {
		return badRequest(c, "effective_date must be YYYY-MM-DD")
	}

	rule, err := fc.fees.ScheduleFeeRule(c.UserContext(), id, effective)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rule)
}

// HandleActivateFeeRule activates a scheduled rule now
func (fc *FeeRuleController) HandleActivateFeeRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	rule, err := fc.fees.ActivateFeeRule(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rule)
}

// HandleDeactivateFeeRule stops future generation for a rule
func (fc *FeeRuleController) HandleDeactivateFeeRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	rule, err := fc.fees.DeactivateFeeRule(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rule)
}

// HandleApplyFeeRule generates applications for one rule, inline or as a job
func (fc *FeeRuleController) HandleApplyFeeRule(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	var req RunRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	asOf, err := parseDate(req.AsOf)
	if err != nil {
		return badRequest(c, "as_of must be YYYY-MM-DD")
	}

	if req.Async {
		if fc.jobs == nil {
			return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Job queue unavailable")
		}
		// Reject unknown rules before queueing
		if _, err := fc.fees.GetFeeRule(c.UserContext(), id); err != nil {
			return respondError(c, err)
		}
		job, err := jobqueue.EnqueueApplyFeeRule(c.UserContext(), fc.jobs, id, asOf, usercontext.GetMemberID(c))
		if err != nil {
			log.Errorf("[API] Failed to enqueue apply job for fee rule %d: %v", id, err)
			return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Failed to enqueue job")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID, "status": job.Status})
	}

	result, err := fc.fees.ApplyFeeRule(c.UserContext(), id, asOf)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"fee_rule_id": id, "created": result.Created, "skipped": result.Skipped})
}

// HandleListFeeRuleRuns returns the recent run log of a rule
func (fc *FeeRuleController) HandleListFeeRuleRuns(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	runs, err := fc.fees.ListFeeRuleRuns(c.UserContext(), id, c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": runs})
}

// HandleListRuleApplications lists every application a rule produced
func (fc *FeeRuleController) HandleListRuleApplications(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid fee rule id")
	}
	apps, err := fc.fees.ListApplicationsForRule(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": apps})
}

// HandleActivateScheduled activates every scheduled rule due today
func (fc *FeeRuleController) HandleActivateScheduled(c *fiber.Ctx) error {
	activated, err := fc.fees.ActivateScheduledRules(c.UserContext(), time.Time{})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"activated": activated})
}

// HandleRunSweep runs activation, generation and the overdue check
func (fc *FeeRuleController) HandleRunSweep(c *fiber.Ctx) error {
	var req RunRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	asOf, err := parseDate(req.AsOf)
	if err != nil {
		return badRequest(c, "as_of must be YYYY-MM-DD")
	}

	if req.Async {
		if fc.jobs == nil {
			return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Job queue unavailable")
		}
		job, err := jobqueue.EnqueueFeeSweep(c.UserContext(), fc.jobs, asOf, usercontext.GetMemberID(c))
		if err != nil {
			log.Errorf("[API] Failed to enqueue fee sweep: %v", err)
			return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Failed to enqueue job")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID, "status": job.Status})
	}

	report, err := fc.fees.RunSweep(c.UserContext(), asOf)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// HandleMarkOverdue runs the overdue check on its own
func (fc *FeeRuleController) HandleMarkOverdue(c *fiber.Ctx) error {
	var req RunRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	asOf, err := parseDate(req.AsOf)
	if err != nil {
		return badRequest(c, "as_of must be YYYY-MM-DD")
	}

	if req.Async {
		if fc.jobs == nil {
			return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Job queue unavailable")
		}
		job, err := jobqueue.EnqueueMarkOverdue(c.UserContext(), fc.jobs, asOf, usercontext.GetMemberID(c))
		if err != nil {
			log.Errorf("[API] Failed to enqueue overdue check: %v", err)
			return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Failed to enqueue job")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID, "status": job.Status})
	}

	n, err := fc.fees.MarkOverdue(c.UserContext(), asOf)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"overdue": n})
}
