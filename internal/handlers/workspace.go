package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type WorkspaceHandler struct {
	workspaceService  *services.WorkspaceService
	membershipService *services.MembershipService
}

func NewWorkspaceHandler(db *gorm.DB, audit *services.AuditService) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService:  services.NewWorkspaceService(db, audit),
		membershipService: services.NewMembershipService(db, audit),
	}
}

// Create makes a new workspace
// POST /api/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req services.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ws, err := h.workspaceService.Create(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, ws)
}

// List returns the workspaces visible to the caller
// GET /api/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	req := services.VisibleListRequest{
		Search: c.Query("search"),
	}

	workspaces, err := h.membershipService.VisibleWorkspaces(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, workspaces)
}

// Browse returns discoverable workspaces the caller has not joined
// GET /api/workspaces/browse
func (h *WorkspaceHandler) Browse(c *gin.Context) {
	workspaces, err := h.membershipService.BrowseWorkspaces(actorFrom(c), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, workspaces)
}

// Get returns one workspace
// GET /api/workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ws, err := h.workspaceService.Get(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, ws)
}

// Update changes workspace settings
// PUT /api/workspaces/:id
func (h *WorkspaceHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ws, err := h.workspaceService.Update(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, ws)
}

// Delete removes a workspace
// DELETE /api/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.workspaceService.Delete(actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "workspace deleted"})
}
