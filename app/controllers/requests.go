package controllers

import (
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/AgroCoop/internal/pkg/fees"
)

// FeeRuleRequest is the body of fee rule create and update calls.
type FeeRuleRequest struct {
	Name          string          `json:"name" validate:"required,min=3,max=150"`
	Description   string          `json:"description" validate:"max=2000"`
	Type          string          `json:"type" validate:"required,oneof=one_time recurring"`
	Frequency     string          `json:"frequency" validate:"omitempty,oneof=monthly quarterly annual"`
	Amount        decimal.Decimal `json:"amount"`
	ApplicableTo  string          `json:"applicable_to" validate:"required,oneof=all role unit zone"`
	TargetRole    string          `json:"target_role"`
	TargetUnitID  *uint           `json:"target_unit_id"`
	TargetZoneID  *uint           `json:"target_zone_id"`
	EffectiveDate string          `json:"effective_date" validate:"required,datetime=2006-01-02"`
	Status        string          `json:"status" validate:"omitempty,oneof=draft scheduled"`
	GraceDays     *int            `json:"grace_days" validate:"omitempty,min=0,max=365"`
}

func (r FeeRuleRequest) toInput() (fees.FeeRuleInput, error) {
	effective, err := parseDate(r.EffectiveDate)
	if err != nil {
		return fees.FeeRuleInput{}, err
	}
	return fees.FeeRuleInput{
		Name:          r.Name,
		Description:   r.Description,
		Type:          r.Type,
		Frequency:     r.Frequency,
		Amount:        r.Amount,
		ApplicableTo:  r.ApplicableTo,
		TargetRole:    r.TargetRole,
		TargetUnitID:  r.TargetUnitID,
		TargetZoneID:  r.TargetZoneID,
		EffectiveDate: effective,
		Status:        r.Status,
		GraceDays:     r.GraceDays,
	}, nil
}

// ScheduleRequest moves a rule to scheduled.
type ScheduleRequest struct {
	EffectiveDate string `json:"effective_date" validate:"required,datetime=2006-01-02"`
}

// RunRequest triggers generation or a sweep, optionally through the job queue.
type RunRequest struct {
	AsOf  string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Async bool   `json:"async"`
}

// CancelRequest cancels a fee application.
type CancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// PaymentRequest records a payment on a fee application.
type PaymentRequest struct {
	PaidAt    string `json:"paid_at"`
	Reference string `json:"reference" validate:"max=100"`
	Notes     string `json:"notes" validate:"max=2000"`
}
