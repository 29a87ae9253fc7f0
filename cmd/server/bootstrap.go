package main

import (
	"github.com/teamsync-hq/teamsync/backend/internal/config"
	"github.com/teamsync-hq/teamsync/backend/internal/handlers"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/services"
	"github.com/teamsync-hq/teamsync/backend/internal/utils"
	"github.com/teamsync-hq/teamsync/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg          *config.Config
	auditService *services.AuditService
	taskQueue    services.TaskQueue
	worker       *services.Worker
	scheduler    *services.SchedulerService
	authHandler  *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize task queue (uses Redis if enabled, otherwise in-process mode)
	taskQueue := services.InitTaskQueue(cfg)

	// Wire the audit and notification pipeline behind the queue
	auditService := services.NewAuditService(models.GetDB(), taskQueue)
	emailService := services.NewEmailService(&cfg.Email)
	dispatcher := services.NewDispatcher(auditService, emailService)

	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(dispatcher.Process)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(dispatcher.Process)
			worker.Start()
		}
	}

	// Start the invitation expiry sweep and audit retention jobs
	invitationService := services.NewInvitationService(models.GetDB(), auditService, taskQueue, cfg)
	scheduler := services.NewSchedulerService(invitationService, auditService, cfg)
	scheduler.Start()

	// Create default admin user
	authHandler := handlers.NewAuthHandler(models.GetDB(), cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:          cfg,
		auditService: auditService,
		taskQueue:    taskQueue,
		worker:       worker,
		scheduler:    scheduler,
		authHandler:  authHandler,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	logger.Info().Msg("All services stopped")
}
