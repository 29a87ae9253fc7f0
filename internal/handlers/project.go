package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	projectService    *services.ProjectService
	membershipService *services.MembershipService
}

func NewProjectHandler(db *gorm.DB, audit *services.AuditService) *ProjectHandler {
	return &ProjectHandler{
		projectService:    services.NewProjectService(db, audit),
		membershipService: services.NewMembershipService(db, audit),
	}
}

// Create makes a new project
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	p, err := h.projectService.Create(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, p)
}

// List returns the projects visible to the caller
// GET /api/projects?workspace_id=&search=
func (h *ProjectHandler) List(c *gin.Context) {
	req := services.VisibleListRequest{
		Search: c.Query("search"),
	}
	if raw := c.Query("workspace_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			response.BadRequest(c, "invalid workspace_id")
			return
		}
		wid := uint(id)
		req.WorkspaceID = &wid
	}

	projects, err := h.membershipService.VisibleProjects(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, projects)
}

// Browse returns discoverable projects the caller has not joined
// GET /api/projects/browse
func (h *ProjectHandler) Browse(c *gin.Context) {
	projects, err := h.membershipService.BrowseProjects(actorFrom(c), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, projects)
}

// Get returns one project
// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	p, err := h.projectService.Get(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, p)
}

// Update changes project settings
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	p, err := h.projectService.Update(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, p)
}

// Delete removes a project
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "project deleted"})
}
