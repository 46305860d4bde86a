package fees

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
)

// PeriodBucket returns the billing period key for a rule at asOf.
// One-time rules always map to "once"; recurring rules use calendar
// periods: "2024-05" (monthly), "2024-Q2" (quarterly), "2024" (annual).
func PeriodBucket(rule *models.FeeRule, asOf time.Time) (string, error) {
	if !rule.IsRecurring() {
		return models.PeriodBucketOnce, nil
	}
	switch rule.Frequency {
	case models.FeeFrequencyMonthly:
		return asOf.Format("2006-01"), nil
	case models.FeeFrequencyQuarterly:
		return fmt.Sprintf("%04d-Q%d", asOf.Year(), (int(asOf.Month())-1)/3+1), nil
	case models.FeeFrequencyAnnual:
		return fmt.Sprintf("%04d", asOf.Year()), nil
	default:
		return "", validationError("fee rule %d has unknown frequency %q", rule.ID, rule.Frequency)
	}
}

// DueDate is the calendar day graceDays after asOf.
func DueDate(asOf time.Time, graceDays int) time.Time {
	return DateOnly(asOf).AddDate(0, 0, graceDays)
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// sameDayOrAfter reports whether a falls on or after b, ignoring the clock.
func sameDayOrAfter(a, b time.Time) bool {
	return a.Format(time.DateOnly) >= b.Format(time.DateOnly)
}
