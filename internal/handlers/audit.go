package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: audit}
}

// List returns a page of the audit trail. Admin only.
// GET /api/admin/audit-logs?user_id=&action=&resource_type=&page=&page_size=
func (h *AuditHandler) List(c *gin.Context) {
	req := services.AuditListRequest{
		Action:       c.Query("action"),
		ResourceType: c.Query("resource_type"),
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			response.BadRequest(c, "invalid user_id")
			return
		}
		uid := uint(id)
		req.UserID = &uid
	}
	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	entries, total, err := h.auditService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"items": entries,
		"total": total,
	})
}
