package models

import "time"

// AuditLog is an append-only record of mutating operations. Writes are
// best-effort and never roll back the mutation they describe.
type AuditLog struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       *uint  `gorm:"index" json:"user_id"`
	User         *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action       string `gorm:"size:100;index;not null" json:"action"`
	ResourceType string `gorm:"size:50;index" json:"resource_type"`
	ResourceID   *uint  `json:"resource_id"`
	IP           string `gorm:"size:50" json:"ip"`
	UserAgent    string `gorm:"size:500" json:"user_agent"`
	Details      string `gorm:"type:text" json:"details"` // JSON extra data

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
