package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/middleware"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
)

// actorFrom builds the acting identity from the authenticated request.
func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:    middleware.GetUserID(c),
		Email:     middleware.GetEmail(c),
		Role:      middleware.GetRole(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// paramID parses a numeric path parameter. Writes a 400 and returns false
// when it is not a positive integer.
func paramID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
