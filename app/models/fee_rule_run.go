package models

import "time"

const (
	FeeRunTriggerSweep  = "sweep"
	FeeRunTriggerManual = "manual"
	FeeRunTriggerJob    = "job"
)

// FeeRuleRun logs one generation attempt of a fee rule. Together with
// FeeRule.LastRunAt it replaces implicit cron state.
type FeeRuleRun struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	FeeRuleID    uint       `gorm:"not null;index:idx_fee_rule_runs_rule_started,priority:1" json:"fee_rule_id"`
	AsOf         time.Time  `gorm:"type:date;not null" json:"as_of"`
	PeriodBucket string     `gorm:"type:varchar(16);not null" json:"period_bucket"`
	Trigger      string     `gorm:"type:varchar(16);not null;default:'sweep'" json:"trigger"`
	Created      int        `gorm:"not null;default:0" json:"created"`
	Skipped      int        `gorm:"not null;default:0" json:"skipped"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt    time.Time  `gorm:"not null;index:idx_fee_rule_runs_rule_started,priority:2" json:"started_at"`
	FinishedAt   *time.Time `gorm:"type:timestamp;default:null" json:"finished_at,omitempty"`
}

// Succeeded reports whether the run completed without error.
func (r *FeeRuleRun) Succeeded() bool {
	return r.FinishedAt != nil && r.Error == ""
}
