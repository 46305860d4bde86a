package repository

import (
	"context"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"gorm.io/gorm"
)

type unitRepository struct {
	db *gorm.DB
}

// NewUnitRepository creates a new unit repository instance
func NewUnitRepository(db *gorm.DB) UnitRepository {
	return &unitRepository{db: db}
}

func (r *unitRepository) Create(ctx context.Context, unit *models.Unit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *unitRepository) GetByID(ctx context.Context, id uint) (*models.Unit, error) {
	var unit models.Unit
	if err := r.db.WithContext(ctx).First(&unit, id).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *unitRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Unit{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

type zoneRepository struct {
	db *gorm.DB
}

// NewZoneRepository creates a new zone repository instance
func NewZoneRepository(db *gorm.DB) ZoneRepository {
	return &zoneRepository{db: db}
}

func (r *zoneRepository) Create(ctx context.Context, zone *models.Zone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

func (r *zoneRepository) GetByID(ctx context.Context, id uint) (*models.Zone, error) {
	var zone models.Zone
	if err := r.db.WithContext(ctx).First(&zone, id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *zoneRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Zone{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
