package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/config"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type InvitationHandler struct {
	invitationService *services.InvitationService
}

func NewInvitationHandler(db *gorm.DB, audit *services.AuditService, queue services.TaskQueue, cfg *config.Config) *InvitationHandler {
	return &InvitationHandler{
		invitationService: services.NewInvitationService(db, audit, queue, cfg),
	}
}

// Invite issues an invitation on the given entity kind
// POST /api/workspaces/:id/invitations, POST /api/projects/:id/invitations
func (h *InvitationHandler) Invite(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var req services.IssueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		inv, err := h.invitationService.Issue(actorFrom(c), kind, id, &req)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Created(c, inv)
	}
}

// ListForEntity returns an entity's invitations
// GET /api/workspaces/:id/invitations?status=, GET /api/projects/:id/invitations?status=
func (h *InvitationHandler) ListForEntity(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		status := models.InvitationStatus(c.Query("status"))
		invitations, err := h.invitationService.ListForEntity(actorFrom(c), kind, id, status)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, invitations)
	}
}

// Mine returns the caller's open invitations
// GET /api/invitations
func (h *InvitationHandler) Mine(c *gin.Context) {
	invitations, err := h.invitationService.ListForUser(actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, invitations)
}

// ByToken resolves an emailed invitation link
// GET /api/invitations/token/:token
func (h *InvitationHandler) ByToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "invalid token")
		return
	}

	inv, err := h.invitationService.GetByToken(actorFrom(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, inv)
}

// Accept joins the entity the invitation points at
// POST /api/invitations/:id/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	inv, err := h.invitationService.Accept(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, inv)
}

// Decline refuses the invitation
// POST /api/invitations/:id/decline
func (h *InvitationHandler) Decline(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	inv, err := h.invitationService.Decline(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, inv)
}

// Cancel withdraws a pending invitation
// DELETE /api/invitations/:id
func (h *InvitationHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.invitationService.Cancel(actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "invitation cancelled"})
}
