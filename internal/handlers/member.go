package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type MemberHandler struct {
	membershipService *services.MembershipService
}

func NewMemberHandler(db *gorm.DB, audit *services.AuditService) *MemberHandler {
	return &MemberHandler{
		membershipService: services.NewMembershipService(db, audit),
	}
}

// List returns the entity's members
// GET /api/workspaces/:id/members, GET /api/projects/:id/members
func (h *MemberHandler) List(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		members, err := h.membershipService.ListMembers(actorFrom(c), kind, id)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, members)
	}
}

type updateRoleBody struct {
	Role models.Role `json:"role" binding:"required"`
}

// UpdateRole changes a member's role
// PUT /api/workspaces/:id/members/:userID/role
func (h *MemberHandler) UpdateRole(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		userID, ok := paramID(c, "userID")
		if !ok {
			return
		}

		var body updateRoleBody
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		m, err := h.membershipService.UpdateRole(actorFrom(c), kind, id, userID, body.Role)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, m)
	}
}

// Remove deletes a membership
// DELETE /api/workspaces/:id/members/:userID
func (h *MemberHandler) Remove(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		userID, ok := paramID(c, "userID")
		if !ok {
			return
		}

		if err := h.membershipService.RemoveMember(actorFrom(c), kind, id, userID); err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, gin.H{"message": "member removed"})
	}
}
