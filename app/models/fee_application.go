package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FeeApplicationStatusPending   = "pending"
	FeeApplicationStatusPaid      = "paid"
	FeeApplicationStatusOverdue   = "overdue"
	FeeApplicationStatusCancelled = "cancelled"
)

// PeriodBucketOnce is the billing period of one-time rules.
const PeriodBucketOnce = "once"

// feeApplicationTransitions lists the allowed status changes. Paid and
// cancelled are terminal.
var feeApplicationTransitions = map[string][]string{
	FeeApplicationStatusPending: {FeeApplicationStatusPaid, FeeApplicationStatusOverdue, FeeApplicationStatusCancelled},
	FeeApplicationStatusOverdue: {FeeApplicationStatusPaid, FeeApplicationStatusCancelled},
}

// FeeApplication is one payable obligation of one member for one fee rule
// occurrence. Rows are never deleted, only cancelled.
type FeeApplication struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	FeeRuleID        uint            `gorm:"not null;index:ux_fee_applications_rule_member_period,unique,priority:1" json:"fee_rule_id"`
	MemberID         uint            `gorm:"not null;index:ux_fee_applications_rule_member_period,unique,priority:2;index:idx_fee_applications_member_status,priority:1" json:"member_id"`
	PeriodBucket     string          `gorm:"type:varchar(16);not null;index:ux_fee_applications_rule_member_period,unique,priority:3" json:"period_bucket"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	DueDate          time.Time       `gorm:"type:date;not null;index:idx_fee_applications_status_due,priority:2" json:"due_date"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending';index:idx_fee_applications_member_status,priority:2;index:idx_fee_applications_status_due,priority:1" json:"status"`
	PaidDate         *time.Time      `gorm:"type:timestamp;default:null" json:"paid_date,omitempty"`
	PaymentReference string          `gorm:"type:varchar(100);not null;default:''" json:"payment_reference,omitempty"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	CancelledAt      *time.Time      `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	FeeRule          *FeeRule        `gorm:"foreignKey:FeeRuleID" json:"fee_rule,omitempty"`
}

// CanTransitionTo reports whether the application may move to status.
func (a *FeeApplication) CanTransitionTo(status string) bool {
	for _, next := range feeApplicationTransitions[a.Status] {
		if next == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is possible.
func (a *FeeApplication) IsTerminal() bool {
	return a.Status == FeeApplicationStatusPaid || a.Status == FeeApplicationStatusCancelled
}

// IsPayable reports whether a payment may be recorded.
func (a *FeeApplication) IsPayable() bool {
	return a.CanTransitionTo(FeeApplicationStatusPaid)
}

// MarkAsPaid sets the paid status and payment details.
func (a *FeeApplication) MarkAsPaid(paidAt time.Time, reference, notes string) {
	a.Status = FeeApplicationStatusPaid
	a.PaidDate = &paidAt
	a.PaymentReference = reference
	if notes != "" {
		a.Notes = notes
	}
}

// MarkAsCancelled sets the cancelled status and appends the reason to notes.
func (a *FeeApplication) MarkAsCancelled(at time.Time, reason string) {
	a.Status = FeeApplicationStatusCancelled
	a.CancelledAt = &at
	if reason == "" {
		return
	}
	if a.Notes != "" {
		a.Notes += "\n"
	}
	a.Notes += "cancelled: " + reason
}
