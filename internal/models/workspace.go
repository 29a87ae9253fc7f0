package models

import (
	"time"

	"gorm.io/gorm"
)

// Workspace types
const (
	WorkspacePersonal     = "personal"
	WorkspaceTeam         = "team"
	WorkspaceOrganization = "organization"
	WorkspaceClient       = "client"
)

// Workspace is the top-level ownership boundary grouping projects and members.
// Being a workspace member does not automatically grant access to its projects.
type Workspace struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	Slug          string     `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Description   string     `gorm:"type:text" json:"description"`
	WorkspaceType string     `gorm:"size:20;default:personal" json:"workspace_type"`
	Visibility    Visibility `gorm:"size:20;default:private;index" json:"visibility"`
	OwnerID       uint       `gorm:"index;not null" json:"owner_id"`
	Owner         *User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	// Settings
	DefaultProjectVisibility   Visibility `gorm:"size:20;default:private" json:"default_project_visibility"`
	AllowMemberProjectCreation bool       `gorm:"default:true" json:"allow_member_project_creation"`
	RequireJoinApproval        bool       `gorm:"default:true" json:"require_join_approval"`

	AvatarURL string `gorm:"size:500" json:"avatar_url"`
	Website   string `gorm:"size:500" json:"website"`

	// Offline sync tracking. SyncVersion only ever increases.
	SyncVersion int64      `gorm:"default:0;not null" json:"sync_version"`
	LastSynced  *time.Time `json:"last_synced"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Workspace) TableName() string { return "workspaces" }
