package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_MEMBER      = "member"
	ROLE_UNIT_LEADER = "unit_leader"
	ROLE_ZONE_LEADER = "zone_leader"
	ROLE_ADMIN       = "admin"

	STATUS_ACTIVE    = "active"
	STATUS_INACTIVE  = "inactive"
	STATUS_SUSPENDED = "suspended"
)

const apiKeyPrefixLength = 8

// Member is a cooperative account. Only active members are billed.
type Member struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email            string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	Phone            string         `gorm:"type:varchar(32);default:null" json:"phone" validate:"max=32"`
	Role             string         `gorm:"type:varchar(50);default:'member';index:idx_members_status_role,priority:2" json:"role" validate:"oneof=member unit_leader zone_leader admin"`
	Status           string         `gorm:"type:varchar(50);default:'active';index:idx_members_status_role,priority:1" json:"status" validate:"oneof=active inactive suspended"`
	UnitID           *uint          `gorm:"index" json:"unit_id,omitempty"`
	Unit             *Unit          `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	APIKeyHash       string         `gorm:"type:char(64);default:null;index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(16);default:null" json:"-"`
	APIKeyLastUsedAt *time.Time     `gorm:"type:timestamp;default:null" json:"api_key_last_used_at,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// MemberRoles lists the roles a fee rule may target.
var MemberRoles = []string{ROLE_MEMBER, ROLE_UNIT_LEADER, ROLE_ZONE_LEADER}

func (m *Member) Validate() error {
	v := validator.New()

	return v.Struct(m)
}

// IsActive reports whether the member status is active
func (m *Member) IsActive() bool {
	return m.Status == STATUS_ACTIVE
}

// IsAdmin reports whether the member has the admin role
func (m *Member) IsAdmin() bool {
	return m.Role == ROLE_ADMIN
}

// IsTargetableRole reports whether role may be used as a fee rule target.
func IsTargetableRole(role string) bool {
	for _, r := range MemberRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IssueAPIKey generates a new API key, stores its hash and returns the raw key once.
func (m *Member) IssueAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	rawKey := "ac_" + hex.EncodeToString(b)
	m.APIKeyHash = HashAPIKey(rawKey)
	m.APIKeyPrefix = rawKey[:apiKeyPrefixLength]
	m.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// RevokeAPIKey clears the stored API key material.
func (m *Member) RevokeAPIKey() {
	m.APIKeyHash = ""
	m.APIKeyPrefix = ""
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
