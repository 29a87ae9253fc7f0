package models

import (
	"time"

	"gorm.io/gorm"
)

// Account states
const (
	AccountInvited    = "invited"    // invited but not yet registered
	AccountRegistered = "registered" // registered but not yet onboarded
	AccountActive     = "active"
	AccountSuspended  = "suspended"
)

// User represents a registered account
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string         `gorm:"size:255" json:"-"` // bcrypt hash
	Name         string         `gorm:"size:100" json:"name"`
	Avatar       string         `gorm:"size:500" json:"avatar"`
	Role         string         `gorm:"size:50;default:user" json:"role"` // admin, user (system-wide)
	AccountState string         `gorm:"size:20;default:registered" json:"account_state"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	LastLogin    *time.Time     `json:"last_login"`
	LastSync     *time.Time     `json:"last_sync"` // last full client sync
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }
