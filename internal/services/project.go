package services

import (
	"errors"
	"fmt"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/utils"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewProjectService(db *gorm.DB, audit *AuditService) *ProjectService {
	return &ProjectService{db: db, audit: audit}
}

// CreateProjectRequest carries the fields a user sets on creation. A nil
// WorkspaceID makes a standalone project.
type CreateProjectRequest struct {
	Name        string            `json:"name" binding:"required,min=1,max=255"`
	Description string            `json:"description"`
	WorkspaceID *uint             `json:"workspace_id"`
	Visibility  models.Visibility `json:"visibility"`
	Tags        string            `json:"tags"`
}

// uniqueProjectSlug derives a slug unique within the workspace scope.
// Standalone projects share the null-workspace scope.
func uniqueProjectSlug(tx *gorm.DB, workspaceID *uint, name string) (string, error) {
	base := utils.Slugify(name)
	slug := base
	for i := 2; ; i++ {
		query := tx.Unscoped().Model(&models.Project{}).Where("slug = ?", slug)
		if workspaceID != nil {
			query = query.Where("workspace_id = ?", *workspaceID)
		} else {
			query = query.Where("workspace_id IS NULL")
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// Create makes a project owned by the actor. Creating inside a workspace
// requires project-creation rights there, and the workspace must allow
// member-created projects unless the actor manages its settings.
func (s *ProjectService) Create(actor Actor, req *CreateProjectRequest) (*models.Project, error) {
	var p models.Project
	err := s.db.Transaction(func(tx *gorm.DB) error {
		visibility := req.Visibility

		if req.WorkspaceID != nil {
			ws, err := loadEntity(tx, models.EntityWorkspace, *req.WorkspaceID)
			if err != nil {
				return err
			}

			bundle, _, isMember := resolveBundle(tx, actor.UserID, ws)
			if !isMember && !actor.IsAdmin() {
				return response.NewForbidden("you are not a member of this workspace")
			}
			if !bundle.CanCreateProjects && !actor.IsAdmin() {
				return response.NewForbidden("you do not have permission to create projects here")
			}
			if !ws.AllowMemberProjectCreation && !bundle.CanManageSettings && !actor.IsAdmin() {
				return response.NewForbidden("this workspace does not allow member-created projects")
			}

			if visibility == "" {
				var full models.Workspace
				if err := tx.First(&full, ws.ID).Error; err != nil {
					return err
				}
				visibility = full.DefaultProjectVisibility
			}
		}

		if visibility == "" {
			visibility = models.VisibilityPrivate
		}
		if !models.ValidVisibility(models.EntityProject, visibility) {
			return response.NewBadRequest("invalid project visibility")
		}
		if visibility == models.VisibilityTeam && req.WorkspaceID == nil {
			return response.NewBadRequest("team visibility requires a workspace")
		}

		slug, err := uniqueProjectSlug(tx, req.WorkspaceID, req.Name)
		if err != nil {
			return err
		}

		p = models.Project{
			Name:        req.Name,
			Slug:        slug,
			Description: req.Description,
			WorkspaceID: req.WorkspaceID,
			OwnerID:     actor.UserID,
			Visibility:  visibility,
			Tags:        req.Tags,
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}

		e := &Entity{Kind: models.EntityProject, ID: p.ID, OwnerID: p.OwnerID}
		if err := createMembership(tx, e, actor.UserID, models.OwnerRole(models.EntityProject), nil); err != nil {
			return err
		}

		activateAccount(tx, actor.UserID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "project.created", string(models.EntityProject), p.ID, map[string]interface{}{
		"name": p.Name,
		"slug": p.Slug,
	})
	return &p, nil
}

// Get returns a project the actor can see. Invisible projects are
// indistinguishable from missing ones.
func (s *ProjectService) Get(actor Actor, id uint) (*models.Project, error) {
	e, err := loadEntity(s.db, models.EntityProject, id)
	if err != nil {
		return nil, err
	}
	if !entityVisibleTo(s.db, actor, e) {
		return nil, response.NewNotFound("project not found")
	}

	var p models.Project
	if err := s.db.Preload("Owner").Preload("Workspace").First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProjectRequest carries the mutable project fields. Nil means leave
// unchanged.
type UpdateProjectRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Visibility  *models.Visibility `json:"visibility"`
	Tags        *string            `json:"tags"`
}

// Update changes project settings. Requires settings-management rights.
func (s *ProjectService) Update(actor Actor, id uint, req *UpdateProjectRequest) (*models.Project, error) {
	var p models.Project
	err := s.db.Transaction(func(tx *gorm.DB) error {
		e, err := loadEntity(tx, models.EntityProject, id)
		if err != nil {
			return err
		}

		bundle, _, _ := resolveBundle(tx, actor.UserID, e)
		if !bundle.CanManageSettings && !actor.IsAdmin() {
			return response.NewForbidden("you do not have permission to update this project")
		}

		if err := tx.First(&p, id).Error; err != nil {
			return err
		}

		if req.Name != nil && *req.Name != "" {
			p.Name = *req.Name
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Visibility != nil {
			if !models.ValidVisibility(models.EntityProject, *req.Visibility) {
				return response.NewBadRequest("invalid project visibility")
			}
			if *req.Visibility == models.VisibilityTeam && p.WorkspaceID == nil {
				return response.NewBadRequest("team visibility requires a workspace")
			}
			p.Visibility = *req.Visibility
		}
		if req.Tags != nil {
			p.Tags = *req.Tags
		}

		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		return bumpSyncVersion(tx, models.EntityProject, id)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(actor, "project.updated", string(models.EntityProject), p.ID, nil)
	return &p, nil
}

// Delete soft-deletes a project. Owner only.
func (s *ProjectService) Delete(actor Actor, id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Project
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.NewNotFound("project not found")
			}
			return err
		}
		if p.OwnerID != actor.UserID && !actor.IsAdmin() {
			return response.NewForbidden("only the owner can delete a project")
		}
		return tx.Delete(&p).Error
	})
	if err != nil {
		return err
	}

	s.audit.Emit(actor, "project.deleted", string(models.EntityProject), id, nil)
	return nil
}
