package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	DefaultFeeGraceDays                   = 15
	DefaultFeeSweepIntervalMinutes        = 24 * 60
	DefaultFeeOverdueCheckIntervalMinutes = 60
	DefaultFeeGenerationWorkers           = 4
	DefaultJobQueueWorkerCount            = 3
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings represents the application settings structure
type AppSettings struct {
	SiteTitle                      string `json:"site_title" validate:"required,min=1,max=255"`
	FeeGraceDays                   int    `json:"fee_grace_days" validate:"min=0,max=365"`
	FeeSweepIntervalMinutes        int    `json:"fee_sweep_interval_minutes" validate:"min=1,max=10080"`
	FeeOverdueCheckIntervalMinutes int    `json:"fee_overdue_check_interval_minutes" validate:"min=1,max=10080"`
	FeeGenerationWorkers           int    `json:"fee_generation_workers" validate:"min=1,max=64"`
	JobQueueWorkerCount            int    `json:"job_queue_worker_count" validate:"min=1,max=64"`
	mu                             sync.RWMutex
}

// Global settings instance
var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

// DefaultAppSettings returns settings populated with the built-in defaults.
func DefaultAppSettings() *AppSettings {
	return &AppSettings{
		SiteTitle:                      "AgroCoop",
		FeeGraceDays:                   DefaultFeeGraceDays,
		FeeSweepIntervalMinutes:        DefaultFeeSweepIntervalMinutes,
		FeeOverdueCheckIntervalMinutes: DefaultFeeOverdueCheckIntervalMinutes,
		FeeGenerationWorkers:           DefaultFeeGenerationWorkers,
		JobQueueWorkerCount:            DefaultJobQueueWorkerCount,
	}
}

// GetAppSettings returns the current application settings.
// Falls back to defaults when LoadSettings has not run yet.
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if appSettings == nil {
		return DefaultAppSettings()
	}
	return appSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	loaded := DefaultAppSettings()

	// Load settings from database
	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Apply loaded settings
	for _, setting := range settings {
		applySetting(loaded, setting.Key, setting.Value)
	}

	appSettings = loaded
	return nil
}

// applySetting writes one stored key/value into s. Unparseable integers keep the default.
func applySetting(s *AppSettings, key, value string) {
	atoi := func(current int) int {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		return current
	}

	switch key {
	case "site_title":
		s.SiteTitle = value
	case "fee_grace_days":
		s.FeeGraceDays = atoi(s.FeeGraceDays)
	case "fee_sweep_interval_minutes":
		s.FeeSweepIntervalMinutes = atoi(s.FeeSweepIntervalMinutes)
	case "fee_overdue_check_interval_minutes":
		s.FeeOverdueCheckIntervalMinutes = atoi(s.FeeOverdueCheckIntervalMinutes)
	case "fee_generation_workers":
		s.FeeGenerationWorkers = atoi(s.FeeGenerationWorkers)
	case "job_queue_worker_count":
		s.JobQueueWorkerCount = atoi(s.JobQueueWorkerCount)
	}
}

// SaveSettings saves current settings to database
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Validate settings
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Convert settings to database format
	settingsMap := map[string]interface{}{
		"site_title":                         settings.SiteTitle,
		"fee_grace_days":                     settings.FeeGraceDays,
		"fee_sweep_interval_minutes":         settings.FeeSweepIntervalMinutes,
		"fee_overdue_check_interval_minutes": settings.FeeOverdueCheckIntervalMinutes,
		"fee_generation_workers":             settings.FeeGenerationWorkers,
		"job_queue_worker_count":             settings.JobQueueWorkerCount,
	}

	// Save each setting
	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				// Create new setting
				setting = Setting{
					Key:   key,
					Value: fmt.Sprintf("%v", value),
					Type:  SettingType(key),
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			// Update existing setting
			setting.Value = fmt.Sprintf("%v", value)
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	// Update global settings
	appSettings = settings
	return nil
}

// IsIntegerSetting reports whether key holds an integer value
func IsIntegerSetting(key string) bool {
	switch key {
	case "fee_grace_days", "fee_sweep_interval_minutes", "fee_overdue_check_interval_minutes",
		"fee_generation_workers", "job_queue_worker_count":
		return true
	}
	return false
}

// SettingType returns the stored type of a setting key
func SettingType(key string) string {
	if IsIntegerSetting(key) {
		return "integer"
	}
	return "string"
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ToJSON converts settings to JSON
func (s *AppSettings) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s)
}

// GetFeeGraceDays returns the default number of days between generation and due date
func (s *AppSettings) GetFeeGraceDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FeeGraceDays < 0 {
		return DefaultFeeGraceDays
	}
	return s.FeeGraceDays
}

// GetFeeSweepInterval returns the interval between scheduled fee sweeps
func (s *AppSettings) GetFeeSweepInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FeeSweepIntervalMinutes <= 0 {
		return DefaultFeeSweepIntervalMinutes * time.Minute
	}
	return time.Duration(s.FeeSweepIntervalMinutes) * time.Minute
}

// GetFeeOverdueCheckInterval returns the interval between overdue checks
func (s *AppSettings) GetFeeOverdueCheckInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FeeOverdueCheckIntervalMinutes <= 0 {
		return DefaultFeeOverdueCheckIntervalMinutes * time.Minute
	}
	return time.Duration(s.FeeOverdueCheckIntervalMinutes) * time.Minute
}

// GetFeeGenerationWorkers returns how many rules are generated in parallel
func (s *AppSettings) GetFeeGenerationWorkers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FeeGenerationWorkers <= 0 {
		return DefaultFeeGenerationWorkers
	}
	return s.FeeGenerationWorkers
}

// GetJobQueueWorkerCount returns the number of job queue workers
func (s *AppSettings) GetJobQueueWorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.JobQueueWorkerCount <= 0 {
		return DefaultJobQueueWorkerCount
	}
	return s.JobQueueWorkerCount
}
