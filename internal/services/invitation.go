package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/teamsync-hq/teamsync/backend/internal/config"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

// InvitationService drives the invitation lifecycle: pending is the only
// state that can transition, to accepted, declined or expired. All
// transitions run inside a transaction together with their membership and
// sync-version effects.
type InvitationService struct {
	db    *gorm.DB
	audit *AuditService
	queue TaskQueue
	cfg   *config.Config
}

func NewInvitationService(db *gorm.DB, audit *AuditService, queue TaskQueue, cfg *config.Config) *InvitationService {
	return &InvitationService{db: db, audit: audit, queue: queue, cfg: cfg}
}

func (s *InvitationService) expiryWindow() time.Duration {
	days := s.cfg.Invitation.ExpireDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// IssueRequest carries the parameters of a new invitation.
type IssueRequest struct {
	Email   string      `json:"email" binding:"required,email"`
	Role    models.Role `json:"role"`
	Message string      `json:"message"`
}

// Issue creates a pending invitation for an email address, or refreshes an
// expired pending one in place. The inviter must hold invite rights on the
// entity.
func (s *InvitationService) Issue(actor Actor, kind models.EntityKind, entityID uint, req *IssueRequest) (*models.Invitation, error) {
	role := req.Role
	if role == "" {
		role = models.DefaultRole(kind)
	}
	if !models.ValidRole(kind, role) {
		return nil, response.NewBadRequest("invalid role for " + string(kind))
	}

	var (
		invitation models.Invitation
		entityName string
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		e, err := loadEntity(tx, kind, entityID)
		if err != nil {
			return err
		}
		entityName = e.Name

		bundle, _, _ := resolveBundle(tx, actor.UserID, e)
		if !bundle.CanInvite && !actor.IsAdmin() {
			return response.NewForbidden("you do not have permission to invite members")
		}

		// The invitee may not have an account yet; bind by email and
		// resolve the account at accept time.
		var invitee models.User
		var inviteeID *uint
		if err := tx.Where("email = ?", req.Email).First(&invitee).Error; err == nil {
			if invitee.ID == e.OwnerID {
				return response.NewConflict("user is already a member")
			}
			var count int64
			tx.Model(&models.Membership{}).
				Where("entity_kind = ? AND entity_id = ? AND user_id = ?", kind, entityID, invitee.ID).
				Count(&count)
			if count > 0 {
				return response.NewConflict("user is already a member")
			}
			id := invitee.ID
			inviteeID = &id
		}

		now := time.Now()

		var existing models.Invitation
		err = tx.Where("entity_kind = ? AND entity_id = ? AND invitee_email = ? AND status = ?",
			kind, entityID, req.Email, models.InvitationPending).
			First(&existing).Error
		if err == nil {
			if !existing.IsExpired(now) {
				return response.NewConflict("a pending invitation already exists for this email")
			}
			// Refresh the stale row in place rather than creating a
			// second one; the row keeps its identity.
			existing.InviterID = actor.UserID
			existing.InviteeID = inviteeID
			existing.Role = role
			existing.Message = req.Message
			existing.Token = uuid.NewString()
			existing.InvitedAt = now
			existing.RespondedAt = nil
			existing.ExpiresAt = now.Add(s.expiryWindow())
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			invitation = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		invitation = models.Invitation{
			EntityKind:   kind,
			EntityID:     entityID,
			InviterID:    actor.UserID,
			InviteeEmail: req.Email,
			InviteeID:    inviteeID,
			Role:         role,
			Message:      req.Message,
			Status:       models.InvitationPending,
			Token:        uuid.NewString(),
			InvitedAt:    now,
			ExpiresAt:    now.Add(s.expiryWindow()),
		}
		return tx.Create(&invitation).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "invitation.created", string(kind), entityID, map[string]interface{}{
		"invitation_id": invitation.ID,
		"invitee_email": invitation.InviteeEmail,
		"role":          string(invitation.Role),
	})
	s.queueNotification(&invitation, actor, entityName)

	return &invitation, nil
}

// queueNotification enqueues the invitation email. Best-effort.
func (s *InvitationService) queueNotification(inv *models.Invitation, actor Actor, entityName string) {
	inviterName := actor.Email
	var inviter models.User
	if err := s.db.First(&inviter, actor.UserID).Error; err == nil && inviter.Name != "" {
		inviterName = inviter.Name
	}

	mail := &InvitationEmail{
		To:          inv.InviteeEmail,
		EntityKind:  string(inv.EntityKind),
		EntityName:  entityName,
		InviterName: inviterName,
		Role:        string(inv.Role),
		Message:     inv.Message,
		Token:       inv.Token,
		ExpiresAt:   inv.ExpiresAt,
	}
	if err := s.queue.Enqueue(TaskTypeInvitationEmail, mail); err != nil {
		s.audit.Emit(actor, "invitation.email_failed", string(inv.EntityKind), inv.EntityID, map[string]interface{}{
			"invitation_id": inv.ID,
		})
	}
}

// loadForInvitee fetches an invitation addressed to the actor, by account
// ID or by email. Invitations addressed to others are indistinguishable
// from missing ones.
func loadForInvitee(tx *gorm.DB, actor Actor, invitationID uint) (*models.Invitation, error) {
	var inv models.Invitation
	err := tx.Where("id = ? AND (invitee_id = ? OR invitee_email = ?)",
		invitationID, actor.UserID, actor.Email).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("invitation not found")
		}
		return nil, err
	}
	return &inv, nil
}

// Accept turns a pending invitation into a membership. Accepting an
// already-accepted invitation is a no-op when the membership exists.
func (s *InvitationService) Accept(actor Actor, invitationID uint) (*models.Invitation, error) {
	var accepted models.Invitation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := loadForInvitee(tx, actor, invitationID)
		if err != nil {
			return err
		}

		now := time.Now()

		switch inv.Status {
		case models.InvitationAccepted:
			// Idempotent when the membership made it through.
			var count int64
			tx.Model(&models.Membership{}).
				Where("entity_kind = ? AND entity_id = ? AND user_id = ?", inv.EntityKind, inv.EntityID, actor.UserID).
				Count(&count)
			if count > 0 {
				accepted = *inv
				return nil
			}
			return response.NewConflict("invitation was already accepted")
		case models.InvitationDeclined:
			return response.NewConflict("invitation was declined")
		case models.InvitationExpired:
			return response.NewExpired("invitation has expired")
		}

		if inv.IsExpired(now) {
			inv.Status = models.InvitationExpired
			if err := tx.Save(inv).Error; err != nil {
				return err
			}
			return response.NewExpired("invitation has expired")
		}

		e, err := loadEntity(tx, inv.EntityKind, inv.EntityID)
		if err != nil {
			return err
		}

		uid := actor.UserID
		inv.Status = models.InvitationAccepted
		inv.InviteeID = &uid
		inv.RespondedAt = &now
		if err := tx.Save(inv).Error; err != nil {
			return err
		}

		inviterID := inv.InviterID
		if err := createMembership(tx, e, actor.UserID, inv.Role, &inviterID); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost a race with a join-request approval or a second
				// accept; the membership exists, which is what we wanted.
				accepted = *inv
				return nil
			}
			return err
		}

		activateAccount(tx, actor.UserID)

		if err := bumpSyncVersion(tx, inv.EntityKind, inv.EntityID); err != nil {
			return err
		}

		accepted = *inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "invitation.accepted", string(accepted.EntityKind), accepted.EntityID, map[string]interface{}{
		"invitation_id": accepted.ID,
		"role":          string(accepted.Role),
	})
	return &accepted, nil
}

// Decline marks a pending invitation declined. No membership or sync
// effects.
func (s *InvitationService) Decline(actor Actor, invitationID uint) (*models.Invitation, error) {
	var declined models.Invitation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		inv, err := loadForInvitee(tx, actor, invitationID)
		if err != nil {
			return err
		}

		now := time.Now()

		switch inv.Status {
		case models.InvitationDeclined:
			declined = *inv
			return nil
		case models.InvitationAccepted:
			return response.NewConflict("invitation was already accepted")
		case models.InvitationExpired:
			return response.NewExpired("invitation has expired")
		}

		if inv.IsExpired(now) {
			inv.Status = models.InvitationExpired
			if err := tx.Save(inv).Error; err != nil {
				return err
			}
			return response.NewExpired("invitation has expired")
		}

		uid := actor.UserID
		inv.Status = models.InvitationDeclined
		inv.InviteeID = &uid
		inv.RespondedAt = &now
		if err := tx.Save(inv).Error; err != nil {
			return err
		}

		declined = *inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "invitation.declined", string(declined.EntityKind), declined.EntityID, map[string]interface{}{
		"invitation_id": declined.ID,
	})
	return &declined, nil
}

// Cancel withdraws a pending invitation. Allowed for the inviter or anyone
// with invite rights on the entity. A cancelled invitation lands in the
// declined state.
func (s *InvitationService) Cancel(actor Actor, invitationID uint) error {
	var cancelled models.Invitation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inv models.Invitation
		if err := tx.First(&inv, invitationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("invitation not found")
			}
			return err
		}

		if inv.Status != models.InvitationPending {
			return response.NewConflict("only pending invitations can be cancelled")
		}

		if inv.InviterID != actor.UserID && !actor.IsAdmin() {
			e, err := loadEntity(tx, inv.EntityKind, inv.EntityID)
			if err != nil {
				return err
			}
			bundle, _, _ := resolveBundle(tx, actor.UserID, e)
			if !bundle.CanInvite {
				return response.NewForbidden("you do not have permission to cancel this invitation")
			}
		}

		now := time.Now()
		inv.Status = models.InvitationDeclined
		inv.RespondedAt = &now
		if err := tx.Save(&inv).Error; err != nil {
			return err
		}

		cancelled = inv
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Emit(actor, "invitation.cancelled", string(cancelled.EntityKind), cancelled.EntityID, map[string]interface{}{
		"invitation_id": cancelled.ID,
		"invitee_email": cancelled.InviteeEmail,
	})
	return nil
}

// GetByToken resolves the emailed invitation link. Only the addressee can
// look it up.
func (s *InvitationService) GetByToken(actor Actor, token string) (*models.Invitation, error) {
	var inv models.Invitation
	err := s.db.Preload("Inviter").
		Where("token = ? AND (invitee_id = ? OR invitee_email = ?)", token, actor.UserID, actor.Email).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("invitation not found")
		}
		return nil, err
	}
	return &inv, nil
}

// ListForEntity returns the entity's invitations, newest first. Requires
// invite rights. An optional status filters the list.
func (s *InvitationService) ListForEntity(actor Actor, kind models.EntityKind, entityID uint, status models.InvitationStatus) ([]models.Invitation, error) {
	e, err := loadEntity(s.db, kind, entityID)
	if err != nil {
		return nil, err
	}

	bundle, _, _ := resolveBundle(s.db, actor.UserID, e)
	if !bundle.CanInvite && !actor.IsAdmin() {
		return nil, response.NewForbidden("you do not have permission to view invitations")
	}

	query := s.db.Preload("Inviter").Preload("Invitee").
		Where("entity_kind = ? AND entity_id = ?", kind, entityID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var invitations []models.Invitation
	err = query.Order("invited_at DESC").Find(&invitations).Error
	return invitations, err
}

// ListForUser returns the actor's open invitations across all entities.
func (s *InvitationService) ListForUser(actor Actor) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := s.db.Preload("Inviter").
		Where("(invitee_id = ? OR invitee_email = ?) AND status = ? AND expires_at > ?",
			actor.UserID, actor.Email, models.InvitationPending, time.Now()).
		Order("invited_at DESC").
		Find(&invitations).Error
	return invitations, err
}

// ExpireStale flips pending invitations past their expiry into the expired
// state. Called by the scheduler; accept and decline also expire lazily.
func (s *InvitationService) ExpireStale() (int64, error) {
	result := s.db.Model(&models.Invitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationPending, time.Now()).
		Update("status", models.InvitationExpired)
	return result.RowsAffected, result.Error
}
