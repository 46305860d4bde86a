package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
)

const (
	sweepCountersKey = "fees:counters:sweep:"
	// MaxDays is how long per-day counters are retained
	MaxDays = 90
)

// DayTotals holds the accumulated sweep outcome of one day
type DayTotals struct {
	Day       string `json:"day"`
	Sweeps    int64  `json:"sweeps"`
	Activated int64  `json:"activated"`
	Created   int64  `json:"created"`
	Skipped   int64  `json:"skipped"`
	Failed    int64  `json:"failed"`
	Overdue   int64  `json:"overdue"`
}

func sweepKey(day time.Time) string {
	return sweepCountersKey + day.Format(time.DateOnly)
}

// RecordSweep adds the outcome of one sweep to the counters of its day
func RecordSweep(ctx context.Context, rdb *redis.Client, report *fees.SweepReport) error {
	if rdb == nil || report == nil {
		return nil
	}
	key := sweepKey(report.AsOf)

	pipe := rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "sweeps", 1)
	pipe.HIncrBy(ctx, key, "activated", int64(len(report.Activated)))
	pipe.HIncrBy(ctx, key, "created", int64(report.Created))
	pipe.HIncrBy(ctx, key, "skipped", int64(report.Skipped))
	pipe.HIncrBy(ctx, key, "failed", int64(report.Failed))
	pipe.HIncrBy(ctx, key, "overdue", report.Overdue)
	pipe.Expire(ctx, key, MaxDays*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// SweepTotals returns the counters of the days days ending at today, oldest first.
// Days without a sweep are included with zero values.
func SweepTotals(ctx context.Context, rdb *redis.Client, today time.Time, days int) ([]DayTotals, error) {
	if days <= 0 {
		days = 1
	}
	if days > MaxDays {
		days = MaxDays
	}

	pipe := rdb.Pipeline()
	dates := make([]time.Time, days)
	cmds := make([]*redis.MapStringStringCmd, days)
	for i := 0; i < days; i++ {
		dates[i] = today.AddDate(0, 0, i-days+1)
		cmds[i] = pipe.HGetAll(ctx, sweepKey(dates[i]))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	totals := make([]DayTotals, days)
	for i, cmd := range cmds {
		values := make(map[string]int64, len(cmd.Val()))
		for field, raw := range cmd.Val() {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			values[field] = n
		}
		totals[i] = DayTotals{
			Day:       dates[i].Format(time.DateOnly),
			Sweeps:    values["sweeps"],
			Activated: values["activated"],
			Created:   values["created"],
			Skipped:   values["skipped"],
			Failed:    values["failed"],
			Overdue:   values["overdue"],
		}
	}
	return totals, nil
}
