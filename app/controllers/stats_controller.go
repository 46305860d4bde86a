package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/AgroCoop/internal/pkg/metrics/counter"
)

const defaultStatsDays = 7

// StatsController serves the per-day sweep counters
type StatsController struct {
	rdb *redis.Client
	now func() time.Time
}

func NewStatsController(rdb *redis.Client) *StatsController {
	return &StatsController{rdb: rdb, now: time.Now}
}

// HandleSweepStats returns sweep counters for the last ?days= days (default 7)
func (sc *StatsController) HandleSweepStats(c *fiber.Ctx) error {
	if sc.rdb == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Statistics unavailable")
	}
	days := c.QueryInt("days", defaultStatsDays)
	if days < 1 || days > counter.MaxDays {
		return badRequest(c, "days must be between 1 and 90")
	}

	totals, err := counter.SweepTotals(c.UserContext(), sc.rdb, sc.now(), days)
	if err != nil {
		log.Errorf("[API] Failed to read sweep counters: %v", err)
		return errorJSON(c, fiber.StatusServiceUnavailable, "unavailable", "Statistics unavailable")
	}
	return c.JSON(fiber.Map{"data": totals})
}
