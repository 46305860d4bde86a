package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// feeApplicationRepository implements the FeeApplicationRepository interface
type feeApplicationRepository struct {
	db *gorm.DB
}

// NewFeeApplicationRepository creates a new fee application repository instance
func NewFeeApplicationRepository(db *gorm.DB) FeeApplicationRepository {
	return &feeApplicationRepository{db: db}
}

// CreateIfNotExists inserts the application relying on the
// ux_fee_applications_rule_member_period unique index. A concurrent writer
// that wins the race leaves RowsAffected at zero.
func (r *feeApplicationRepository) CreateIfNotExists(ctx context.Context, app *models.FeeApplication) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "fee_rule_id"},
			{Name: "member_id"},
			{Name: "period_bucket"},
		},
		DoNothing: true,
	}).Create(app)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GetByID retrieves a fee application by ID together with its rule
func (r *feeApplicationRepository) GetByID(ctx context.Context, id uint) (*models.FeeApplication, error) {
	var app models.FeeApplication
	err := r.db.WithContext(ctx).Preload("FeeRule").First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateIfStatus writes the mutable columns guarded by the expected status
func (r *feeApplicationRepository) UpdateIfStatus(ctx context.Context, app *models.FeeApplication, expected string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.FeeApplication{}).
		Where("id = ? AND status = ?", app.ID, expected).
		Updates(map[string]interface{}{
			"status":            app.Status,
			"paid_date":         app.PaidDate,
			"payment_reference": app.PaymentReference,
			"notes":             app.Notes,
			"cancelled_at":      app.CancelledAt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListByMember returns a member's applications, latest due date first
func (r *feeApplicationRepository) ListByMember(ctx context.Context, memberID uint, filter FeeApplicationFilter) ([]models.FeeApplication, error) {
	var apps []models.FeeApplication
	query := r.db.WithContext(ctx).
		Preload("FeeRule").
		Where("member_id = ?", memberID).
		Order("due_date DESC, id DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}
	err := query.Find(&apps).Error
	return apps, err
}

// ListByRule returns every application generated from a rule
func (r *feeApplicationRepository) ListByRule(ctx context.Context, ruleID uint) ([]models.FeeApplication, error) {
	var apps []models.FeeApplication
	err := r.db.WithContext(ctx).
		Where("fee_rule_id = ?", ruleID).
		Order("period_bucket, member_id").
		Find(&apps).Error
	return apps, err
}

// CountByRule counts applications generated from a rule
func (r *feeApplicationRepository) CountByRule(ctx context.Context, ruleID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FeeApplication{}).
		Where("fee_rule_id = ?", ruleID).
		Count(&count).Error
	return count, err
}

// MarkOverdue flips pending applications past their due date
func (r *feeApplicationRepository) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.FeeApplication{}).
		Where("status = ? AND due_date < ?", models.FeeApplicationStatusPending, today.Format(time.DateOnly)).
		Update("status", models.FeeApplicationStatusOverdue)
	return tx.RowsAffected, tx.Error
}
