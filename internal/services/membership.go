package services

import (
	"errors"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

// MembershipService resolves who can see and do what on workspaces and
// projects, and manages membership rows directly (role changes, removal).
type MembershipService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewMembershipService(db *gorm.DB, audit *AuditService) *MembershipService {
	return &MembershipService{db: db, audit: audit}
}

// resolveBundle computes the user's effective permission bundle for an
// entity. The owner always resolves to the maximal role of the entity's
// kind, without needing a membership row. Non-members get the zero bundle.
func resolveBundle(db *gorm.DB, userID uint, e *Entity) (models.PermissionBundle, models.Role, bool) {
	if userID != 0 && userID == e.OwnerID {
		role := models.OwnerRole(e.Kind)
		return models.PolicyFor(e.Kind, role), role, true
	}

	var m models.Membership
	err := db.Where("entity_kind = ? AND entity_id = ? AND user_id = ?", e.Kind, e.ID, userID).
		First(&m).Error
	if err != nil {
		return models.PermissionBundle{}, "", false
	}
	return m.PermissionBundle, m.Role, true
}

// createMembership inserts a membership row with the bundle derived from
// the role. A duplicate-key error means another transaction already created
// the row; callers treat that as already-a-member.
func createMembership(tx *gorm.DB, e *Entity, userID uint, role models.Role, invitedBy *uint) error {
	m := models.Membership{
		EntityKind:       e.Kind,
		EntityID:         e.ID,
		UserID:           userID,
		Role:             role,
		PermissionBundle: models.PolicyFor(e.Kind, role),
		InvitedByID:      invitedBy,
	}
	return tx.Create(&m).Error
}

// activateAccount moves a registered account to active the first time it
// joins an entity. Errors are swallowed; activation is a convenience, not
// part of the membership contract.
func activateAccount(tx *gorm.DB, userID uint) {
	tx.Model(&models.User{}).
		Where("id = ? AND account_state = ?", userID, models.AccountRegistered).
		Update("account_state", models.AccountActive)
}

// ListMembers returns the entity's membership rows. Members only.
func (s *MembershipService) ListMembers(actor Actor, kind models.EntityKind, entityID uint) ([]models.Membership, error) {
	e, err := loadEntity(s.db, kind, entityID)
	if err != nil {
		return nil, err
	}

	_, _, isMember := resolveBundle(s.db, actor.UserID, e)
	if !isMember && !actor.IsAdmin() {
		return nil, response.NewForbidden("you are not a member of this " + e.resourceType())
	}

	var members []models.Membership
	err = s.db.Preload("User").
		Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}

// UpdateRole changes a member's role and re-derives their permission
// bundle from the policy table. Requires settings-management rights.
func (s *MembershipService) UpdateRole(actor Actor, kind models.EntityKind, entityID, targetUserID uint, newRole models.Role) (*models.Membership, error) {
	if !models.ValidRole(kind, newRole) {
		return nil, response.NewBadRequest("invalid role for " + string(kind))
	}

	var updated models.Membership
	err := s.db.Transaction(func(tx *gorm.DB) error {
		e, err := loadEntity(tx, kind, entityID)
		if err != nil {
			return err
		}

		bundle, _, _ := resolveBundle(tx, actor.UserID, e)
		if !bundle.CanManageSettings && !actor.IsAdmin() {
			return response.NewForbidden("you do not have permission to manage members")
		}

		if targetUserID == e.OwnerID {
			return response.NewConflict("the owner's role cannot be changed")
		}

		var m models.Membership
		if err := tx.Where("entity_kind = ? AND entity_id = ? AND user_id = ?", kind, entityID, targetUserID).
			First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("membership not found")
			}
			return err
		}

		m.Role = newRole
		m.PermissionBundle = models.PolicyFor(kind, newRole)
		if err := tx.Save(&m).Error; err != nil {
			return err
		}

		if err := bumpSyncVersion(tx, kind, entityID); err != nil {
			return err
		}

		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "member.role_changed", string(kind), entityID, map[string]interface{}{
		"user_id": targetUserID,
		"role":    string(newRole),
	})
	return &updated, nil
}

// RemoveMember deletes a membership row. Members may remove themselves;
// removing someone else requires invite rights. The owner can never be
// removed.
func (s *MembershipService) RemoveMember(actor Actor, kind models.EntityKind, entityID, targetUserID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		e, err := loadEntity(tx, kind, entityID)
		if err != nil {
			return err
		}

		if targetUserID == e.OwnerID {
			return response.NewConflict("the owner cannot be removed")
		}

		if targetUserID != actor.UserID {
			bundle, _, _ := resolveBundle(tx, actor.UserID, e)
			if !bundle.CanInvite && !actor.IsAdmin() {
				return response.NewForbidden("you do not have permission to remove members")
			}
		}

		result := tx.Where("entity_kind = ? AND entity_id = ? AND user_id = ?", kind, entityID, targetUserID).
			Delete(&models.Membership{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return response.NewNotFound("membership not found")
		}

		return bumpSyncVersion(tx, kind, entityID)
	})
	if err != nil {
		return err
	}

	action := "member.removed"
	if targetUserID == actor.UserID {
		action = "member.left"
	}
	s.audit.Emit(actor, action, string(kind), entityID, map[string]interface{}{
		"user_id": targetUserID,
	})
	return nil
}

// VisibleListRequest filters the visible-entity queries.
type VisibleListRequest struct {
	WorkspaceID *uint  // projects only: restrict to one workspace
	Search      string // name substring match
	Limit       int
}

func (r *VisibleListRequest) normalize() {
	if r.Limit < 1 || r.Limit > 200 {
		r.Limit = 100
	}
}

// memberEntityIDs is a subquery of entity IDs the user holds a membership in.
func (s *MembershipService) memberEntityIDs(kind models.EntityKind, userID uint) *gorm.DB {
	return s.db.Model(&models.Membership{}).
		Select("entity_id").
		Where("entity_kind = ? AND user_id = ?", kind, userID)
}

// invitedEntityIDs is a subquery of entity IDs with a pending invitation
// addressed to the user, by account or by email.
func (s *MembershipService) invitedEntityIDs(kind models.EntityKind, userID uint, email string) *gorm.DB {
	return s.db.Model(&models.Invitation{}).
		Select("entity_id").
		Where("entity_kind = ? AND status = ? AND (invitee_id = ? OR invitee_email = ?)",
			kind, models.InvitationPending, userID, email)
}

// ownedWorkspaceIDs is a subquery of workspace IDs the user owns.
func (s *MembershipService) ownedWorkspaceIDs(userID uint) *gorm.DB {
	return s.db.Model(&models.Workspace{}).
		Select("id").
		Where("owner_id = ?", userID)
}

// VisibleWorkspaces lists workspaces the user can see: owned, joined,
// invited to, or publicly visible.
func (s *MembershipService) VisibleWorkspaces(actor Actor, req *VisibleListRequest) ([]models.Workspace, error) {
	req.normalize()

	query := s.db.Model(&models.Workspace{}).Where(
		"owner_id = ? OR visibility = ? OR id IN (?) OR id IN (?)",
		actor.UserID,
		models.VisibilityPublic,
		s.memberEntityIDs(models.EntityWorkspace, actor.UserID),
		s.invitedEntityIDs(models.EntityWorkspace, actor.UserID, actor.Email),
	)
	if req.Search != "" {
		query = query.Where("name LIKE ?", "%"+req.Search+"%")
	}

	var workspaces []models.Workspace
	err := query.Order("updated_at DESC").Limit(req.Limit).Find(&workspaces).Error
	return workspaces, err
}

// VisibleProjects lists projects the user can see: owned, joined, invited
// to, public, or team-visible within a workspace the user belongs to.
func (s *MembershipService) VisibleProjects(actor Actor, req *VisibleListRequest) ([]models.Project, error) {
	req.normalize()

	query := s.db.Model(&models.Project{}).Where(
		"owner_id = ? OR visibility = ? OR id IN (?) OR id IN (?) OR (visibility = ? AND (workspace_id IN (?) OR workspace_id IN (?)))",
		actor.UserID,
		models.VisibilityPublic,
		s.memberEntityIDs(models.EntityProject, actor.UserID),
		s.invitedEntityIDs(models.EntityProject, actor.UserID, actor.Email),
		models.VisibilityTeam,
		s.memberEntityIDs(models.EntityWorkspace, actor.UserID),
		s.ownedWorkspaceIDs(actor.UserID),
	)
	if req.WorkspaceID != nil {
		query = query.Where("workspace_id = ?", *req.WorkspaceID)
	}
	if req.Search != "" {
		query = query.Where("name LIKE ?", "%"+req.Search+"%")
	}

	var projects []models.Project
	err := query.Order("updated_at DESC").Limit(req.Limit).Find(&projects).Error
	return projects, err
}

// BrowseWorkspaces lists discoverable workspaces the user has not joined,
// for the join-request flow.
func (s *MembershipService) BrowseWorkspaces(actor Actor, search string) ([]models.Workspace, error) {
	query := s.db.Model(&models.Workspace{}).
		Where("visibility IN ?", []models.Visibility{models.VisibilityPublic, models.VisibilityInternal}).
		Where("owner_id != ?", actor.UserID).
		Where("id NOT IN (?)", s.memberEntityIDs(models.EntityWorkspace, actor.UserID))
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	var workspaces []models.Workspace
	err := query.Order("name ASC").Limit(50).Find(&workspaces).Error
	return workspaces, err
}

// BrowseProjects lists discoverable projects the user has not joined.
func (s *MembershipService) BrowseProjects(actor Actor, search string) ([]models.Project, error) {
	query := s.db.Model(&models.Project{}).
		Where("visibility = ? OR (visibility = ? AND (workspace_id IN (?) OR workspace_id IN (?)))",
			models.VisibilityPublic,
			models.VisibilityTeam,
			s.memberEntityIDs(models.EntityWorkspace, actor.UserID),
			s.ownedWorkspaceIDs(actor.UserID),
		).
		Where("owner_id != ?", actor.UserID).
		Where("id NOT IN (?)", s.memberEntityIDs(models.EntityProject, actor.UserID))
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	var projects []models.Project
	err := query.Order("name ASC").Limit(50).Find(&projects).Error
	return projects, err
}
