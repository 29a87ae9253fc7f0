package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// Queue mode
	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// Open invitation count
	var pendingInvitations int64
	models.GetDB().Model(&models.Invitation{}).
		Where("status = ?", models.InvitationPending).
		Count(&pendingInvitations)

	// Open join request count
	var pendingJoinRequests int64
	models.GetDB().Model(&models.JoinRequest{}).
		Where("status = ?", models.JoinRequestPending).
		Count(&pendingJoinRequests)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "teamsync",
		"components": gin.H{
			"database":              dbStatus,
			"queue_mode":            queueMode,
			"pending_invitations":   pendingInvitations,
			"pending_join_requests": pendingJoinRequests,
		},
	})
}
