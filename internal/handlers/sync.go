package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type SyncHandler struct {
	syncService *services.SyncService
}

func NewSyncHandler(db *gorm.DB) *SyncHandler {
	return &SyncHandler{
		syncService: services.NewSyncService(db),
	}
}

// Status reports whether the client's cached copy is stale
// GET /api/workspaces/:id/sync-status?client_version=N
func (h *SyncHandler) Status(kind models.EntityKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var clientVersion int64
		if raw := c.Query("client_version"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 0 {
				response.BadRequest(c, "invalid client_version")
				return
			}
			clientVersion = v
		}

		status, err := h.syncService.CheckStatus(actorFrom(c), kind, id, clientVersion)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.Success(c, status)
	}
}
