package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/config"
	"github.com/teamsync-hq/teamsync/backend/internal/middleware"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: services.NewAuthService(db, &cfg.JWT),
	}
}

type tokenPairResponse struct {
	Token           string      `json:"token"`
	ExpireAt        time.Time   `json:"expire_at"`
	RefreshToken    string      `json:"refresh_token"`
	RefreshExpireAt time.Time   `json:"refresh_expire_at"`
	User            interface{} `json:"user,omitempty"`
}

// Register creates a new account
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		response.Conflict(c, err.Error())
		return
	}

	response.Created(c, user)
}

// Login authenticates and issues a token pair
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	response.Success(c, tokenPairResponse{
		Token:           result.AccessToken,
		ExpireAt:        result.AccessExpireAt,
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt,
		User:            result.User,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates the refresh token
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	response.Success(c, tokenPairResponse{
		Token:           result.AccessToken,
		ExpireAt:        result.AccessExpireAt,
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt,
	})
}

// Logout revokes the presented refresh token
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		_ = h.authService.RevokeRefreshToken(req.RefreshToken)
	}
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// GetCurrentUser returns the authenticated account
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.Success(c, user)
}

// ChangePassword updates the account password
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.authService.ChangePassword(middleware.GetUserID(c), &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "password changed"})
}

// CreateAdminIfNotExists creates the default admin account
func (h *AuthHandler) CreateAdminIfNotExists() error {
	return h.authService.CreateAdminIfNotExists()
}
