package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"gorm.io/gorm"
)

// MemberRepository defines the interface for member-related database operations
type MemberRepository interface {
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id uint) (*models.Member, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.Member, error)
	TouchAPIKey(ctx context.Context, id uint, at time.Time) error
	Update(ctx context.Context, member *models.Member) error
	ListActiveIDs(ctx context.Context) ([]uint, error)
	ListActiveIDsByRole(ctx context.Context, role string) ([]uint, error)
	ListActiveIDsByUnit(ctx context.Context, unitID uint) ([]uint, error)
	ListActiveIDsByZone(ctx context.Context, zoneID uint) ([]uint, error)
}

// UnitRepository defines the interface for unit lookups
type UnitRepository interface {
	Create(ctx context.Context, unit *models.Unit) error
	GetByID(ctx context.Context, id uint) (*models.Unit, error)
	Exists(ctx context.Context, id uint) (bool, error)
}

// ZoneRepository defines the interface for zone lookups
type ZoneRepository interface {
	Create(ctx context.Context, zone *models.Zone) error
	GetByID(ctx context.Context, id uint) (*models.Zone, error)
	Exists(ctx context.Context, id uint) (bool, error)
}

// FeeRuleFilter narrows List results. Empty fields match everything.
type FeeRuleFilter struct {
	Status string
	Offset int
	Limit  int
}

// FeeRuleRepository defines the interface for fee rule persistence
type FeeRuleRepository interface {
	Create(ctx context.Context, rule *models.FeeRule) error
	GetByID(ctx context.Context, id uint) (*models.FeeRule, error)
	// UpdateIfStatus persists the editable fields of rule only while the
	// stored status still equals expected.
	UpdateIfStatus(ctx context.Context, rule *models.FeeRule, expected string) (bool, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter FeeRuleFilter) ([]models.FeeRule, error)
	ListByStatus(ctx context.Context, status string) ([]models.FeeRule, error)
	// ListDueForActivation returns scheduled rules with effective_date <= today.
	ListDueForActivation(ctx context.Context, today time.Time) ([]models.FeeRule, error)
	// ActivateIfScheduled moves a rule from scheduled to active. It reports
	// false when another caller already changed the status.
	ActivateIfScheduled(ctx context.Context, id uint, at time.Time) (bool, error)
	RecordRun(ctx context.Context, id uint, at time.Time, periodBucket string) error
}

// FeeApplicationFilter narrows member listings. Empty fields match everything.
type FeeApplicationFilter struct {
	Status string
	Offset int
	Limit  int
}

// FeeApplicationRepository defines the interface for fee application persistence
type FeeApplicationRepository interface {
	// CreateIfNotExists inserts app unless a row with the same
	// (fee_rule_id, member_id, period_bucket) exists. It reports whether a row was created.
	CreateIfNotExists(ctx context.Context, app *models.FeeApplication) (bool, error)
	GetByID(ctx context.Context, id uint) (*models.FeeApplication, error)
	// UpdateIfStatus persists app only while the stored status still equals expected.
	UpdateIfStatus(ctx context.Context, app *models.FeeApplication, expected string) (bool, error)
	ListByMember(ctx context.Context, memberID uint, filter FeeApplicationFilter) ([]models.FeeApplication, error)
	ListByRule(ctx context.Context, ruleID uint) ([]models.FeeApplication, error)
	CountByRule(ctx context.Context, ruleID uint) (int64, error)
	// MarkOverdue flips pending applications with due_date before today to overdue.
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
}

// FeeRuleRunRepository defines the interface for the schedule run log
type FeeRuleRunRepository interface {
	Create(ctx context.Context, run *models.FeeRuleRun) error
	ListByRule(ctx context.Context, ruleID uint, limit int) ([]models.FeeRuleRun, error)
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	Get() (*models.AppSettings, error)
	Save(settings *models.AppSettings) error
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Member         MemberRepository
	Unit           UnitRepository
	Zone           ZoneRepository
	FeeRule        FeeRuleRepository
	FeeApplication FeeApplicationRepository
	FeeRuleRun     FeeRuleRunRepository
	Setting        SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Member:         NewMemberRepository(db),
		Unit:           NewUnitRepository(db),
		Zone:           NewZoneRepository(db),
		FeeRule:        NewFeeRuleRepository(db),
		FeeApplication: NewFeeApplicationRepository(db),
		FeeRuleRun:     NewFeeRuleRunRepository(db),
		Setting:        NewSettingRepository(db),
	}
}
