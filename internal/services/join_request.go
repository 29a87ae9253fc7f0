package services

import (
	"errors"
	"time"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

// JoinRequestService drives the join-request lifecycle: pending resolves
// to approved or rejected by a reviewer with invite rights. Approval and
// its membership effects are transactional.
type JoinRequestService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewJoinRequestService(db *gorm.DB, audit *AuditService) *JoinRequestService {
	return &JoinRequestService{db: db, audit: audit}
}

// canRequestJoin checks whether the entity accepts join requests from this
// user. Private entities are never joinable this way; team projects only
// accept members of the parent workspace.
func canRequestJoin(tx *gorm.DB, userID uint, e *Entity) error {
	switch e.Visibility {
	case models.VisibilityPrivate:
		return response.NewForbidden("this " + e.resourceType() + " does not accept join requests")
	case models.VisibilityTeam:
		if e.WorkspaceID == nil {
			return response.NewForbidden("this project does not accept join requests")
		}
		var ws models.Workspace
		if err := tx.First(&ws, *e.WorkspaceID).Error; err != nil {
			return response.NewForbidden("this project does not accept join requests")
		}
		if ws.OwnerID == userID {
			return nil
		}
		var count int64
		tx.Model(&models.Membership{}).
			Where("entity_kind = ? AND entity_id = ? AND user_id = ?", models.EntityWorkspace, ws.ID, userID).
			Count(&count)
		if count == 0 {
			return response.NewForbidden("join the workspace before requesting access to its projects")
		}
	}
	return nil
}

// Request files a join request for a discoverable entity. Workspaces that
// do not require approval grant membership immediately.
func (s *JoinRequestService) Request(actor Actor, kind models.EntityKind, entityID uint, message string) (*models.JoinRequest, error) {
	var created models.JoinRequest
	var autoApproved bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		e, err := loadEntity(tx, kind, entityID)
		if err != nil {
			return err
		}

		if err := canRequestJoin(tx, actor.UserID, e); err != nil {
			return err
		}

		if actor.UserID == e.OwnerID {
			return response.NewConflict("you are already a member")
		}
		var count int64
		tx.Model(&models.Membership{}).
			Where("entity_kind = ? AND entity_id = ? AND user_id = ?", kind, entityID, actor.UserID).
			Count(&count)
		if count > 0 {
			return response.NewConflict("you are already a member")
		}

		tx.Model(&models.JoinRequest{}).
			Where("entity_kind = ? AND entity_id = ? AND user_id = ? AND status = ?",
				kind, entityID, actor.UserID, models.JoinRequestPending).
			Count(&count)
		if count > 0 {
			return response.NewConflict("a pending join request already exists")
		}

		now := time.Now()
		created = models.JoinRequest{
			EntityKind:  kind,
			EntityID:    entityID,
			UserID:      actor.UserID,
			Message:     message,
			Status:      models.JoinRequestPending,
			RequestedAt: now,
		}

		autoApproved = s.autoApproves(tx, e)
		if autoApproved {
			created.Status = models.JoinRequestApproved
			created.ReviewedAt = &now
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		if autoApproved {
			if err := createMembership(tx, e, actor.UserID, models.DefaultRole(kind), nil); err != nil {
				if !errors.Is(err, gorm.ErrDuplicatedKey) {
					return err
				}
			}
			activateAccount(tx, actor.UserID)
			return bumpSyncVersion(tx, kind, entityID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := "join_request.created"
	if autoApproved {
		action = "join_request.auto_approved"
	}
	s.audit.Emit(actor, action, string(kind), entityID, map[string]interface{}{
		"join_request_id": created.ID,
	})
	return &created, nil
}

// autoApproves reports whether the entity grants membership without review.
// Only workspaces can opt out of approval.
func (s *JoinRequestService) autoApproves(tx *gorm.DB, e *Entity) bool {
	if e.Kind != models.EntityWorkspace {
		return false
	}
	var ws models.Workspace
	if err := tx.First(&ws, e.ID).Error; err != nil {
		return false
	}
	return !ws.RequireJoinApproval
}

// loadForReview fetches a join request belonging to the entity, for a
// reviewer holding invite rights.
func loadForReview(tx *gorm.DB, actor Actor, kind models.EntityKind, entityID, requestID uint) (*models.JoinRequest, *Entity, error) {
	e, err := loadEntity(tx, kind, entityID)
	if err != nil {
		return nil, nil, err
	}

	bundle, _, _ := resolveBundle(tx, actor.UserID, e)
	if !bundle.CanInvite && !actor.IsAdmin() {
		return nil, nil, response.NewForbidden("you do not have permission to review join requests")
	}

	var jr models.JoinRequest
	err = tx.Where("id = ? AND entity_kind = ? AND entity_id = ?", requestID, kind, entityID).
		First(&jr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, response.NewNotFound("join request not found")
		}
		return nil, nil, err
	}
	return &jr, e, nil
}

// Approve grants the requested membership. Approving an already-approved
// request is a no-op when the membership exists. An optional role overrides
// the kind's default.
func (s *JoinRequestService) Approve(actor Actor, kind models.EntityKind, entityID, requestID uint, role models.Role) (*models.JoinRequest, error) {
	if role == "" {
		role = models.DefaultRole(kind)
	}
	if !models.ValidRole(kind, role) {
		return nil, response.NewBadRequest("invalid role for " + string(kind))
	}

	var approved models.JoinRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		jr, e, err := loadForReview(tx, actor, kind, entityID, requestID)
		if err != nil {
			return err
		}

		switch jr.Status {
		case models.JoinRequestApproved:
			var count int64
			tx.Model(&models.Membership{}).
				Where("entity_kind = ? AND entity_id = ? AND user_id = ?", kind, entityID, jr.UserID).
				Count(&count)
			if count > 0 {
				approved = *jr
				return nil
			}
			return response.NewConflict("join request was already approved")
		case models.JoinRequestRejected:
			return response.NewConflict("join request was rejected")
		}

		now := time.Now()
		reviewerID := actor.UserID
		jr.Status = models.JoinRequestApproved
		jr.ReviewedAt = &now
		jr.ReviewerID = &reviewerID
		if err := tx.Save(jr).Error; err != nil {
			return err
		}

		if err := createMembership(tx, e, jr.UserID, role, &reviewerID); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// The user got in by another path while this request was
				// open; approval still stands.
				approved = *jr
				return nil
			}
			return err
		}

		activateAccount(tx, jr.UserID)

		if err := bumpSyncVersion(tx, kind, entityID); err != nil {
			return err
		}

		approved = *jr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "join_request.approved", string(kind), entityID, map[string]interface{}{
		"join_request_id": approved.ID,
		"user_id":         approved.UserID,
		"role":            string(role),
	})
	return &approved, nil
}

// Reject closes a pending join request without granting membership.
func (s *JoinRequestService) Reject(actor Actor, kind models.EntityKind, entityID, requestID uint) (*models.JoinRequest, error) {
	var rejected models.JoinRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		jr, _, err := loadForReview(tx, actor, kind, entityID, requestID)
		if err != nil {
			return err
		}

		switch jr.Status {
		case models.JoinRequestRejected:
			rejected = *jr
			return nil
		case models.JoinRequestApproved:
			return response.NewConflict("join request was already approved")
		}

		now := time.Now()
		reviewerID := actor.UserID
		jr.Status = models.JoinRequestRejected
		jr.ReviewedAt = &now
		jr.ReviewerID = &reviewerID
		if err := tx.Save(jr).Error; err != nil {
			return err
		}

		rejected = *jr
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "join_request.rejected", string(kind), entityID, map[string]interface{}{
		"join_request_id": rejected.ID,
		"user_id":         rejected.UserID,
	})
	return &rejected, nil
}

// Withdraw closes the actor's own pending request without granting
// membership. Rows are kept as history: like an admin cancellation of an
// invitation, withdrawal reuses the rejected terminal state, with the
// requester recorded as their own reviewer.
func (s *JoinRequestService) Withdraw(actor Actor, requestID uint) error {
	var jr models.JoinRequest
	err := s.db.Where("id = ? AND user_id = ?", requestID, actor.UserID).First(&jr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NewNotFound("join request not found")
		}
		return err
	}
	if jr.Status != models.JoinRequestPending {
		return response.NewConflict("only pending join requests can be withdrawn")
	}

	now := time.Now()
	reviewerID := actor.UserID
	jr.Status = models.JoinRequestRejected
	jr.ReviewedAt = &now
	jr.ReviewerID = &reviewerID
	if err := s.db.Save(&jr).Error; err != nil {
		return err
	}

	s.audit.Emit(actor, "join_request.withdrawn", string(jr.EntityKind), jr.EntityID, map[string]interface{}{
		"join_request_id": jr.ID,
	})
	return nil
}

// ListForEntity returns the entity's join requests for reviewers, newest
// first. An optional status filters the list.
func (s *JoinRequestService) ListForEntity(actor Actor, kind models.EntityKind, entityID uint, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	e, err := loadEntity(s.db, kind, entityID)
	if err != nil {
		return nil, err
	}

	bundle, _, _ := resolveBundle(s.db, actor.UserID, e)
	if !bundle.CanInvite && !actor.IsAdmin() {
		return nil, response.NewForbidden("you do not have permission to view join requests")
	}

	query := s.db.Preload("User").Preload("Reviewer").
		Where("entity_kind = ? AND entity_id = ?", kind, entityID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []models.JoinRequest
	err = query.Order("requested_at DESC").Find(&requests).Error
	return requests, err
}

// ListForUser returns the actor's own join requests across all entities.
func (s *JoinRequestService) ListForUser(actor Actor) ([]models.JoinRequest, error) {
	var requests []models.JoinRequest
	err := s.db.Preload("Reviewer").
		Where("user_id = ?", actor.UserID).
		Order("requested_at DESC").
		Find(&requests).Error
	return requests, err
}
