package services

import (
	"errors"
	"fmt"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/utils"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type WorkspaceService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewWorkspaceService(db *gorm.DB, audit *AuditService) *WorkspaceService {
	return &WorkspaceService{db: db, audit: audit}
}

// CreateWorkspaceRequest carries the fields a user sets on creation.
type CreateWorkspaceRequest struct {
	Name          string            `json:"name" binding:"required,min=1,max=255"`
	Description   string            `json:"description"`
	WorkspaceType string            `json:"workspace_type"`
	Visibility    models.Visibility `json:"visibility"`

	DefaultProjectVisibility   models.Visibility `json:"default_project_visibility"`
	AllowMemberProjectCreation *bool             `json:"allow_member_project_creation"`
	RequireJoinApproval        *bool             `json:"require_join_approval"`
}

// uniqueWorkspaceSlug derives a slug from the name, suffixing a counter
// until it is free. Soft-deleted rows still hold their slug.
func uniqueWorkspaceSlug(tx *gorm.DB, name string) (string, error) {
	base := utils.Slugify(name)
	slug := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Unscoped().Model(&models.Workspace{}).
			Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// Create makes a workspace owned by the actor, together with the owner's
// membership row.
func (s *WorkspaceService) Create(actor Actor, req *CreateWorkspaceRequest) (*models.Workspace, error) {
	wsType := req.WorkspaceType
	if wsType == "" {
		wsType = models.WorkspacePersonal
	}
	switch wsType {
	case models.WorkspacePersonal, models.WorkspaceTeam, models.WorkspaceOrganization, models.WorkspaceClient:
	default:
		return nil, response.NewBadRequest("invalid workspace type")
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	if !models.ValidVisibility(models.EntityWorkspace, visibility) {
		return nil, response.NewBadRequest("invalid workspace visibility")
	}

	projectVisibility := req.DefaultProjectVisibility
	if projectVisibility == "" {
		projectVisibility = models.VisibilityPrivate
	}
	if !models.ValidVisibility(models.EntityProject, projectVisibility) {
		return nil, response.NewBadRequest("invalid default project visibility")
	}

	var ws models.Workspace
	err := s.db.Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueWorkspaceSlug(tx, req.Name)
		if err != nil {
			return err
		}

		ws = models.Workspace{
			Name:                     req.Name,
			Slug:                     slug,
			Description:              req.Description,
			WorkspaceType:            wsType,
			Visibility:               visibility,
			OwnerID:                  actor.UserID,
			DefaultProjectVisibility: projectVisibility,

			AllowMemberProjectCreation: true,
			RequireJoinApproval:        true,
		}
		if req.AllowMemberProjectCreation != nil {
			ws.AllowMemberProjectCreation = *req.AllowMemberProjectCreation
		}
		if req.RequireJoinApproval != nil {
			ws.RequireJoinApproval = *req.RequireJoinApproval
		}
		if err := tx.Create(&ws).Error; err != nil {
			return err
		}

		e := &Entity{Kind: models.EntityWorkspace, ID: ws.ID, OwnerID: ws.OwnerID}
		if err := createMembership(tx, e, actor.UserID, models.OwnerRole(models.EntityWorkspace), nil); err != nil {
			return err
		}

		activateAccount(tx, actor.UserID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "workspace.created", string(models.EntityWorkspace), ws.ID, map[string]interface{}{
		"name": ws.Name,
		"slug": ws.Slug,
	})
	return &ws, nil
}

// Get returns a workspace the actor can see. Invisible workspaces are
// indistinguishable from missing ones.
func (s *WorkspaceService) Get(actor Actor, id uint) (*models.Workspace, error) {
	e, err := loadEntity(s.db, models.EntityWorkspace, id)
	if err != nil {
		return nil, err
	}
	if !entityVisibleTo(s.db, actor, e) {
		return nil, response.NewNotFound("workspace not found")
	}

	var ws models.Workspace
	if err := s.db.Preload("Owner").First(&ws, id).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

// UpdateWorkspaceRequest carries the mutable workspace fields. Nil means
// leave unchanged.
type UpdateWorkspaceRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Visibility  *models.Visibility `json:"visibility"`
	AvatarURL   *string            `json:"avatar_url"`
	Website     *string            `json:"website"`

	DefaultProjectVisibility   *models.Visibility `json:"default_project_visibility"`
	AllowMemberProjectCreation *bool              `json:"allow_member_project_creation"`
	RequireJoinApproval        *bool              `json:"require_join_approval"`
}

// Update changes workspace settings. Requires settings-management rights.
func (s *WorkspaceService) Update(actor Actor, id uint, req *UpdateWorkspaceRequest) (*models.Workspace, error) {
	var ws models.Workspace
	err := s.db.Transaction(func(tx *gorm.DB) error {
		e, err := loadEntity(tx, models.EntityWorkspace, id)
		if err != nil {
			return err
		}

		bundle, _, _ := resolveBundle(tx, actor.UserID, e)
		if !bundle.CanManageSettings && !actor.IsAdmin() {
			return response.NewForbidden("you do not have permission to update this workspace")
		}

		if err := tx.First(&ws, id).Error; err != nil {
			return err
		}

		if req.Name != nil && *req.Name != "" {
			ws.Name = *req.Name
		}
		if req.Description != nil {
			ws.Description = *req.Description
		}
		if req.Visibility != nil {
			if !models.ValidVisibility(models.EntityWorkspace, *req.Visibility) {
				return response.NewBadRequest("invalid workspace visibility")
			}
			ws.Visibility = *req.Visibility
		}
		if req.AvatarURL != nil {
			ws.AvatarURL = *req.AvatarURL
		}
		if req.Website != nil {
			ws.Website = *req.Website
		}
		if req.DefaultProjectVisibility != nil {
			if !models.ValidVisibility(models.EntityProject, *req.DefaultProjectVisibility) {
				return response.NewBadRequest("invalid default project visibility")
			}
			ws.DefaultProjectVisibility = *req.DefaultProjectVisibility
		}
		if req.AllowMemberProjectCreation != nil {
			ws.AllowMemberProjectCreation = *req.AllowMemberProjectCreation
		}
		if req.RequireJoinApproval != nil {
			ws.RequireJoinApproval = *req.RequireJoinApproval
		}

		if err := tx.Save(&ws).Error; err != nil {
			return err
		}
		return bumpSyncVersion(tx, models.EntityWorkspace, id)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "workspace.updated", string(models.EntityWorkspace), ws.ID, nil)
	return &ws, nil
}

// Delete soft-deletes a workspace. Owner only.
func (s *WorkspaceService) Delete(actor Actor, id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ws models.Workspace
		if err := tx.First(&ws, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("workspace not found")
			}
			return err
		}
		if ws.OwnerID != actor.UserID && !actor.IsAdmin() {
			return response.NewForbidden("only the owner can delete a workspace")
		}
		return tx.Delete(&ws).Error
	})
	if err != nil {
		return err
	}

	s.audit.Emit(actor, "workspace.deleted", string(models.EntityWorkspace), id, nil)
	return nil
}
