package main

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync-hq/teamsync/backend/internal/handlers"
	"github.com/teamsync-hq/teamsync/backend/internal/middleware"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/pkg/logger"
)

// registerEntityRoutes wires the membership surface shared by workspaces
// and projects onto one route group.
func registerEntityRoutes(group *gin.RouterGroup, kind models.EntityKind,
	invitationHandler *handlers.InvitationHandler,
	joinRequestHandler *handlers.JoinRequestHandler,
	memberHandler *handlers.MemberHandler,
	syncHandler *handlers.SyncHandler,
) {
	group.POST("/:id/invitations", invitationHandler.Invite(kind))
	group.GET("/:id/invitations", invitationHandler.ListForEntity(kind))

	group.POST("/:id/join-requests", joinRequestHandler.Request(kind))
	group.GET("/:id/join-requests", joinRequestHandler.ListForEntity(kind))
	group.POST("/:id/join-requests/:requestID/approve", joinRequestHandler.Approve(kind))
	group.POST("/:id/join-requests/:requestID/reject", joinRequestHandler.Reject(kind))

	group.GET("/:id/members", memberHandler.List(kind))
	group.PUT("/:id/members/:userID/role", memberHandler.UpdateRole(kind))
	group.DELETE("/:id/members/:userID", memberHandler.Remove(kind))

	group.GET("/:id/sync-status", syncHandler.Status(kind))
}

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for the public auth surface
	authLimiter := middleware.NewRateLimiter(10, 20)

	// Health check
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)

	db := models.GetDB()
	workspaceHandler := handlers.NewWorkspaceHandler(db, svc.auditService)
	projectHandler := handlers.NewProjectHandler(db, svc.auditService)
	invitationHandler := handlers.NewInvitationHandler(db, svc.auditService, svc.taskQueue, svc.cfg)
	joinRequestHandler := handlers.NewJoinRequestHandler(db, svc.auditService)
	memberHandler := handlers.NewMemberHandler(db, svc.auditService)
	syncHandler := handlers.NewSyncHandler(db)
	auditHandler := handlers.NewAuditHandler(svc.auditService)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Workspaces
			workspaces := protected.Group("/workspaces")
			workspaces.POST("", workspaceHandler.Create)
			workspaces.GET("", workspaceHandler.List)
			workspaces.GET("/browse", workspaceHandler.Browse)
			workspaces.GET("/:id", workspaceHandler.Get)
			workspaces.PUT("/:id", workspaceHandler.Update)
			workspaces.DELETE("/:id", workspaceHandler.Delete)
			registerEntityRoutes(workspaces, models.EntityWorkspace,
				invitationHandler, joinRequestHandler, memberHandler, syncHandler)

			// Projects
			projects := protected.Group("/projects")
			projects.POST("", projectHandler.Create)
			projects.GET("", projectHandler.List)
			projects.GET("/browse", projectHandler.Browse)
			projects.GET("/:id", projectHandler.Get)
			projects.PUT("/:id", projectHandler.Update)
			projects.DELETE("/:id", projectHandler.Delete)
			registerEntityRoutes(projects, models.EntityProject,
				invitationHandler, joinRequestHandler, memberHandler, syncHandler)

			// Invitations addressed to the caller
			protected.GET("/invitations", invitationHandler.Mine)
			protected.GET("/invitations/token/:token", invitationHandler.ByToken)
			protected.POST("/invitations/:id/accept", invitationHandler.Accept)
			protected.POST("/invitations/:id/decline", invitationHandler.Decline)
			protected.DELETE("/invitations/:id", invitationHandler.Cancel)

			// The caller's join requests
			protected.GET("/join-requests", joinRequestHandler.Mine)
			protected.DELETE("/join-requests/:id", joinRequestHandler.Withdraw)

			// Admin
			admin := protected.Group("/admin")
			admin.Use(middleware.AdminRequired(), middleware.RequestAudit(svc.auditService))
			admin.GET("/audit-logs", auditHandler.List)
		}
	}
}
