package models

import "time"

// JoinRequest statuses. pending is the only non-terminal state.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// JoinRequest is a self-service request to join a non-private entity,
// resolved by a reviewer holding invite rights. At most one pending
// request exists per (entity, user).
type JoinRequest struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	EntityKind EntityKind        `gorm:"index:idx_join_entity_user;size:20;not null" json:"entity_kind"`
	EntityID   uint              `gorm:"index:idx_join_entity_user;not null" json:"entity_id"`
	UserID     uint              `gorm:"index:idx_join_entity_user;index;not null" json:"user_id"`
	User       *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Message    string            `gorm:"type:text" json:"message"`
	Status     JoinRequestStatus `gorm:"size:20;default:pending;index" json:"status"`

	RequestedAt time.Time  `json:"requested_at"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	ReviewerID  *uint      `json:"reviewer_id"`
	Reviewer    *User      `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (JoinRequest) TableName() string { return "join_requests" }
