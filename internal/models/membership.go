package models

import (
	"time"
)

// Membership binds a user to an entity with a role and its derived
// permission bundle. The composite unique index enforces at most one
// row per (entity, user) pair; it is the backstop against concurrent
// accept/approve races.
type Membership struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	EntityKind EntityKind `gorm:"uniqueIndex:idx_entity_user;size:20;not null" json:"entity_kind"`
	EntityID   uint       `gorm:"uniqueIndex:idx_entity_user;not null" json:"entity_id"`
	UserID     uint       `gorm:"uniqueIndex:idx_entity_user;index;not null" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role       Role       `gorm:"size:20;not null" json:"role"`

	PermissionBundle `gorm:"embedded" json:"permissions"`

	InvitedByID *uint     `json:"invited_by_id,omitempty"`
	JoinedAt    time.Time `gorm:"autoCreateTime" json:"joined_at"`

	// No soft delete: a removed member must be able to rejoin without
	// tripping the unique index.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Membership) TableName() string { return "memberships" }
