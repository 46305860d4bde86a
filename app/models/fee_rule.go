package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	FeeTypeOneTime   = "one_time"
	FeeTypeRecurring = "recurring"
)

const (
	FeeFrequencyMonthly   = "monthly"
	FeeFrequencyQuarterly = "quarterly"
	FeeFrequencyAnnual    = "annual"
)

const (
	FeeApplicableAll  = "all"
	FeeApplicableRole = "role"
	FeeApplicableUnit = "unit"
	FeeApplicableZone = "zone"
)

const (
	FeeRuleStatusDraft     = "draft"
	FeeRuleStatusScheduled = "scheduled"
	FeeRuleStatusActive    = "active"
	FeeRuleStatusInactive  = "inactive"
)

// FeeRule is an admin-defined fee policy: who owes how much and how often.
type FeeRule struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	Description   string          `gorm:"type:text" json:"description" validate:"max=2000"`
	Type          string          `gorm:"type:varchar(20);not null;default:'one_time'" json:"type" validate:"required,oneof=one_time recurring"`
	Frequency     string          `gorm:"type:varchar(20);not null;default:''" json:"frequency,omitempty" validate:"omitempty,oneof=monthly quarterly annual"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	ApplicableTo  string          `gorm:"type:varchar(10);not null;default:'all'" json:"applicable_to" validate:"required,oneof=all role unit zone"`
	TargetRole    string          `gorm:"type:varchar(50);not null;default:''" json:"target_role,omitempty" validate:"omitempty,oneof=member unit_leader zone_leader"`
	TargetUnitID  *uint           `gorm:"default:null;index" json:"target_unit_id,omitempty"`
	TargetZoneID  *uint           `gorm:"default:null;index" json:"target_zone_id,omitempty"`
	EffectiveDate time.Time       `gorm:"type:date;not null;index:idx_fee_rules_status_effective,priority:2" json:"effective_date"`
	Status        string          `gorm:"type:varchar(20);not null;default:'draft';index:idx_fee_rules_status_effective,priority:1" json:"status" validate:"required,oneof=draft scheduled active inactive"`
	GraceDays     *int            `gorm:"default:null" json:"grace_days,omitempty" validate:"omitempty,min=0,max=365"`
	ActivatedAt   *time.Time      `gorm:"type:timestamp;default:null" json:"activated_at,omitempty"`
	LastRunAt     *time.Time      `gorm:"type:timestamp;default:null" json:"last_run_at,omitempty"`
	LastRunPeriod string          `gorm:"type:varchar(16);not null;default:''" json:"last_run_period,omitempty"`
	CreatedBy     uint            `gorm:"not null;default:0" json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Validate checks field formats and the cross-field rules that tags cannot express.
func (r *FeeRule) Validate() error {
	v := validator.New()
	if err := v.Struct(r); err != nil {
		return err
	}

	if !r.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}

	switch r.Type {
	case FeeTypeRecurring:
		if r.Frequency == "" {
			return errors.New("frequency is required for recurring fee rules")
		}
	case FeeTypeOneTime:
		if r.Frequency != "" {
			return errors.New("frequency must be empty for one-time fee rules")
		}
	}

	if r.EffectiveDate.IsZero() {
		return errors.New("effective_date is required")
	}

	switch r.ApplicableTo {
	case FeeApplicableRole:
		if r.TargetRole == "" {
			return errors.New("target_role is required when applicable_to is role")
		}
	case FeeApplicableUnit:
		if r.TargetUnitID == nil || *r.TargetUnitID == 0 {
			return errors.New("target_unit_id is required when applicable_to is unit")
		}
	case FeeApplicableZone:
		if r.TargetZoneID == nil || *r.TargetZoneID == 0 {
			return errors.New("target_zone_id is required when applicable_to is zone")
		}
	}
	if r.ApplicableTo != FeeApplicableRole && r.TargetRole != "" {
		return fmt.Errorf("target_role is not allowed when applicable_to is %s", r.ApplicableTo)
	}
	if r.ApplicableTo != FeeApplicableUnit && r.TargetUnitID != nil {
		return fmt.Errorf("target_unit_id is not allowed when applicable_to is %s", r.ApplicableTo)
	}
	if r.ApplicableTo != FeeApplicableZone && r.TargetZoneID != nil {
		return fmt.Errorf("target_zone_id is not allowed when applicable_to is %s", r.ApplicableTo)
	}

	return nil
}

// IsRecurring reports whether the rule bills once per period.
func (r *FeeRule) IsRecurring() bool {
	return r.Type == FeeTypeRecurring
}

// IsActive reports whether the rule currently generates applications.
func (r *FeeRule) IsActive() bool {
	return r.Status == FeeRuleStatusActive
}

// IsEditable reports whether billing relevant fields may still change.
func (r *FeeRule) IsEditable() bool {
	return r.Status != FeeRuleStatusActive
}
