package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type JoinRequestHandler struct {
	joinRequestService *services.JoinRequestService
}

func NewJoinRequestHandler(db *gorm.DB, audit *services.AuditService) *JoinRequestHandler {
	return &JoinRequestHandler{
		joinRequestService: services.NewJoinRequestService(db, audit),
	}
}

type joinRequestBody struct {
	Message string `json:"message"`
}

type reviewBody struct {
	Role models.Role `json:"role"`
}

// Request files a join request against the entity
// POST /api/workspaces/:id/join-requests, POST /api/projects/:id/join-requests
func (h *JoinRequestHandler) Request(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var body joinRequestBody
		_ = c.ShouldBindJSON(&body)

		jr, err := h.joinRequestService.Request(actorFrom(c), kind, id, body.Message)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Created(c, jr)
	}
}

// ListForEntity returns an entity's join requests for reviewers
// GET /api/workspaces/:id/join-requests?status=, GET /api/projects/:id/join-requests?status=
func (h *JoinRequestHandler) ListForEntity(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		status := models.JoinRequestStatus(c.Query("status"))
		requests, err := h.joinRequestService.ListForEntity(actorFrom(c), kind, id, status)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, requests)
	}
}

// Approve grants the requested membership
// POST /api/workspaces/:id/join-requests/:requestID/approve
func (h *JoinRequestHandler) Approve(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		requestID, ok := paramID(c, "requestID")
		if !ok {
			return
		}

		var body reviewBody
		_ = c.ShouldBindJSON(&body)

		jr, err := h.joinRequestService.Approve(actorFrom(c), kind, id, requestID, body.Role)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, jr)
	}
}

// Reject closes the request without granting membership
// POST /api/workspaces/:id/join-requests/:requestID/reject
func (h *JoinRequestHandler) Reject(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		requestID, ok := paramID(c, "requestID")
		if !ok {
			return
		}

		jr, err := h.joinRequestService.Reject(actorFrom(c), kind, id, requestID)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, jr)
	}
}

// Mine returns the caller's join requests
// GET /api/join-requests
func (h *JoinRequestHandler) Mine(c *gin.Context) {
	requests, err := h.joinRequestService.ListForUser(actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, requests)
}

// Withdraw closes the caller's own pending request
// DELETE /api/join-requests/:id
func (h *JoinRequestHandler) Withdraw(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.joinRequestService.Withdraw(actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "join request withdrawn"})
}
