package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/AgroCoop/internal/pkg/jobqueue"
)

// JobController exposes async job status
type JobController struct {
	jobs JobQueue
}

func NewJobController(jobs JobQueue) *JobController {
	return &JobController{jobs: jobs}
}

// HandleGetJob returns the stored state of a queued job
func (jc *JobController) HandleGetJob(c *fiber.Ctx) error {
	if jc.jobs == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Job queue unavailable")
	}
	job, err := jc.jobs.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errorJSON(c, fiber.StatusNotFound, "not_found", "Job not found or expired")
		}
		return respondError(c, err)
	}
	return c.JSON(jobResponse(job))
}

func jobResponse(job *jobqueue.Job) fiber.Map {
	return fiber.Map{
		"id":           job.ID,
		"type":         job.Type,
		"status":       job.Status,
		"payload":      job.Payload,
		"result":       job.Result,
		"error":        job.ErrorMsg,
		"retry_count":  job.RetryCount,
		"created_at":   job.CreatedAt,
		"completed_at": job.CompletedAt,
	}
}
