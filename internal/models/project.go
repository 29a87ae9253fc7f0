package models

import (
	"time"

	"gorm.io/gorm"
)

// Project is a unit of work, optionally nested under a workspace. Each
// project has its own membership; workspace membership alone grants nothing
// beyond discovery of team-visibility projects.
type Project struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	Slug        string     `gorm:"uniqueIndex:idx_workspace_slug;size:255;not null" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	WorkspaceID *uint      `gorm:"uniqueIndex:idx_workspace_slug;index" json:"workspace_id"`
	Workspace   *Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	OwnerID     uint       `gorm:"index;not null" json:"owner_id"`
	Owner       *User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Visibility  Visibility `gorm:"size:20;default:private;index" json:"visibility"`
	Tags        string     `gorm:"size:1000" json:"tags"` // comma-separated

	// Offline sync tracking. SyncVersion only ever increases.
	SyncVersion int64      `gorm:"default:0;not null" json:"sync_version"`
	LastSynced  *time.Time `json:"last_synced"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }
