package repository

import (
	"context"
	"strings"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"gorm.io/gorm"
)

// memberRepository implements the MemberRepository interface
type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new member repository instance
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

// Create creates a new member in the database
func (r *memberRepository) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// GetByID retrieves a member by ID
func (r *memberRepository) GetByID(ctx context.Context, id uint) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).First(&member, id).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetByAPIKeyHash resolves an API key hash to its member.
func (r *memberRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Member, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("api_key_hash = ? AND api_key_hash <> ''", trimmed).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// TouchAPIKey stores the last usage time of the member's API key
func (r *memberRepository) TouchAPIKey(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		UpdateColumn("api_key_last_used_at", at).Error
}

// Update saves all member fields
func (r *memberRepository) Update(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *memberRepository) activeIDs(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Member{}).
		Where("members.status = ?", models.STATUS_ACTIVE).
		Order("members.id")
}

// ListActiveIDs returns the IDs of every active member
func (r *memberRepository) ListActiveIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.activeIDs(ctx).Pluck("members.id", &ids).Error
	return ids, err
}

// ListActiveIDsByRole returns the IDs of active members holding role
func (r *memberRepository) ListActiveIDsByRole(ctx context.Context, role string) ([]uint, error) {
	var ids []uint
	err := r.activeIDs(ctx).Where("members.role = ?", role).Pluck("members.id", &ids).Error
	return ids, err
}

// ListActiveIDsByUnit returns the IDs of active members of a unit
func (r *memberRepository) ListActiveIDsByUnit(ctx context.Context, unitID uint) ([]uint, error) {
	var ids []uint
	err := r.activeIDs(ctx).Where("members.unit_id = ?", unitID).Pluck("members.id", &ids).Error
	return ids, err
}

// ListActiveIDsByZone returns the IDs of active members whose unit lies in the zone
func (r *memberRepository) ListActiveIDsByZone(ctx context.Context, zoneID uint) ([]uint, error) {
	var ids []uint
	err := r.activeIDs(ctx).
		Joins("JOIN units ON units.id = members.unit_id").
		Where("units.zone_id = ?", zoneID).
		Pluck("members.id", &ids).Error
	return ids, err
}
