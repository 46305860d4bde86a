package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"gorm.io/gorm"
)

// feeRuleRepository implements the FeeRuleRepository interface
type feeRuleRepository struct {
	db *gorm.DB
}

// NewFeeRuleRepository creates a new fee rule repository instance
func NewFeeRuleRepository(db *gorm.DB) FeeRuleRepository {
	return &feeRuleRepository{db: db}
}

// Create creates a new fee rule in the database
func (r *feeRuleRepository) Create(ctx context.Context, rule *models.FeeRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

// GetByID retrieves a fee rule by ID
func (r *feeRuleRepository) GetByID(ctx context.Context, id uint) (*models.FeeRule, error) {
	var rule models.FeeRule
	err := r.db.WithContext(ctx).First(&rule, id).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateIfStatus writes the admin editable columns guarded by the expected status.
// Scheduling state (activated_at, last_run_*) is owned by the scheduler.
func (r *feeRuleRepository) UpdateIfStatus(ctx context.Context, rule *models.FeeRule, expected string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.FeeRule{}).
		Where("id = ? AND status = ?", rule.ID, expected).
		Updates(map[string]interface{}{
			"name":           rule.Name,
			"description":    rule.Description,
			"type":           rule.Type,
			"frequency":      rule.Frequency,
			"amount":         rule.Amount,
			"applicable_to":  rule.ApplicableTo,
			"target_role":    rule.TargetRole,
			"target_unit_id": rule.TargetUnitID,
			"target_zone_id": rule.TargetZoneID,
			"effective_date": rule.EffectiveDate.Format(time.DateOnly),
			"status":         rule.Status,
			"grace_days":     rule.GraceDays,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Delete soft-deletes a fee rule
func (r *feeRuleRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.FeeRule{}, id).Error
}

// List returns fee rules ordered by newest first
func (r *feeRuleRepository) List(ctx context.Context, filter FeeRuleFilter) ([]models.FeeRule, error) {
	var rules []models.FeeRule
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}
	err := query.Find(&rules).Error
	return rules, err
}

// ListByStatus returns all rules in the given status ordered by ID
func (r *feeRuleRepository) ListByStatus(ctx context.Context, status string) ([]models.FeeRule, error) {
	var rules []models.FeeRule
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("id").Find(&rules).Error
	return rules, err
}

// ListDueForActivation returns scheduled rules whose effective date has arrived
func (r *feeRuleRepository) ListDueForActivation(ctx context.Context, today time.Time) ([]models.FeeRule, error) {
	var rules []models.FeeRule
	err := r.db.WithContext(ctx).
		Where("status = ? AND effective_date <= ?", models.FeeRuleStatusScheduled, today.Format(time.DateOnly)).
		Order("id").
		Find(&rules).Error
	return rules, err
}

// ActivateIfScheduled flips a scheduled rule to active
func (r *feeRuleRepository) ActivateIfScheduled(ctx context.Context, id uint, at time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.FeeRule{}).
		Where("id = ? AND status = ?", id, models.FeeRuleStatusScheduled).
		Updates(map[string]interface{}{
			"status":       models.FeeRuleStatusActive,
			"activated_at": at,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// RecordRun stores the per-rule scheduling state after a generation run
func (r *feeRuleRepository) RecordRun(ctx context.Context, id uint, at time.Time, periodBucket string) error {
	return r.db.WithContext(ctx).Model(&models.FeeRule{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"last_run_at":     at,
			"last_run_period": periodBucket,
		}).Error
}
