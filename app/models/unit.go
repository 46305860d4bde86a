package models

import "time"

// Zone groups several units geographically.
type Zone struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null;uniqueIndex" json:"name" validate:"required,max=150"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Unit is a local farmer group. Every unit belongs to exactly one zone.
type Unit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	ZoneID    uint      `gorm:"not null;index" json:"zone_id"`
	Zone      *Zone     `gorm:"foreignKey:ZoneID" json:"zone,omitempty"`
	LeaderID  *uint     `gorm:"default:null" json:"leader_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
