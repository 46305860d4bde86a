package repository

import (
	"context"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"gorm.io/gorm"
)

type feeRuleRunRepository struct {
	db *gorm.DB
}

// NewFeeRuleRunRepository creates a new run log repository instance
func NewFeeRuleRunRepository(db *gorm.DB) FeeRuleRunRepository {
	return &feeRuleRunRepository{db: db}
}

func (r *feeRuleRunRepository) Create(ctx context.Context, run *models.FeeRuleRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// ListByRule returns the most recent runs of a rule first
func (r *feeRuleRunRepository) ListByRule(ctx context.Context, ruleID uint, limit int) ([]models.FeeRuleRun, error) {
	var runs []models.FeeRuleRun
	query := r.db.WithContext(ctx).
		Where("fee_rule_id = ?", ruleID).
		Order("started_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&runs).Error
	return runs, err
}
