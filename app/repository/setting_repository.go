package repository

import (
	"errors"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"gorm.io/gorm"
)

// settingRepository implements the SettingRepository interface
type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository instance
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

// Get retrieves the current application settings
func (r *settingRepository) Get() (*models.AppSettings, error) {
	return models.GetAppSettings(), nil
}

// Save saves the application settings to the database
func (r *settingRepository) Save(settings *models.AppSettings) error {
	return models.SaveSettings(r.db, settings)
}

// GetValue retrieves a specific setting value by key. Missing keys yield "".
func (r *settingRepository) GetValue(key string) (string, error) {
	var setting models.Setting
	err := r.db.Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

// SetValue sets a specific setting value by key and reloads the in-memory settings
func (r *settingRepository) SetValue(key, value string) error {
	var setting models.Setting
	err := r.db.Where("setting_key = ?", key).First(&setting).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.Setting{
			Key:   key,
			Value: value,
			Type:  models.SettingType(key),
		}
		err = r.db.Create(&setting).Error
	case err != nil:
		return err
	default:
		setting.Value = value
		err = r.db.Save(&setting).Error
	}
	if err != nil {
		return err
	}
	return models.LoadSettings(r.db)
}
