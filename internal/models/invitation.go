package models

import "time"

// Invitation statuses. pending is the only non-terminal state.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation is an inviter-initiated request for a user to join an entity.
// At most one pending, non-expired invitation exists per (entity, email);
// re-issuing over an expired pending row refreshes it in place.
type Invitation struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	EntityKind   EntityKind       `gorm:"index:idx_invite_entity_email;size:20;not null" json:"entity_kind"`
	EntityID     uint             `gorm:"index:idx_invite_entity_email;not null" json:"entity_id"`
	InviterID    uint             `gorm:"not null" json:"inviter_id"`
	Inviter      *User            `gorm:"foreignKey:InviterID" json:"inviter,omitempty"`
	InviteeEmail string           `gorm:"index:idx_invite_entity_email;size:255;not null" json:"invitee_email"`
	InviteeID    *uint            `gorm:"index" json:"invitee_id"` // nil until the email matches an account
	Invitee      *User            `gorm:"foreignKey:InviteeID" json:"invitee,omitempty"`
	Role         Role             `gorm:"size:20;not null" json:"role"`
	Message      string           `gorm:"type:text" json:"message"`
	Status       InvitationStatus `gorm:"size:20;default:pending;index" json:"status"`
	Token        string           `gorm:"uniqueIndex;size:36;not null" json:"-"` // emailed accept-link token

	InvitedAt   time.Time  `json:"invited_at"`
	RespondedAt *time.Time `json:"responded_at"`
	ExpiresAt   time.Time  `gorm:"index;not null" json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Invitation) TableName() string { return "invitations" }

// IsExpired reports whether a still-pending invitation is past its expiry.
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.Status == InvitationPending && now.After(i.ExpiresAt)
}
