package services

import (
	"github.com/robfig/cron/v3"
	"github.com/teamsync-hq/teamsync/backend/internal/config"
	"github.com/teamsync-hq/teamsync/backend/pkg/logger"
)

// SchedulerService runs the periodic maintenance jobs: sweeping stale
// pending invitations into the expired state and trimming the audit trail
// past its retention window.
type SchedulerService struct {
	invitations   *InvitationService
	audit         *AuditService
	cfg           *config.Config
	cronScheduler *cron.Cron
}

func NewSchedulerService(invitations *InvitationService, audit *AuditService, cfg *config.Config) *SchedulerService {
	return &SchedulerService{
		invitations: invitations,
		audit:       audit,
		cfg:         cfg,
	}
}

func (s *SchedulerService) Start() {
	s.cronScheduler = cron.New()

	// Hourly invitation expiry sweep. Expiry is also applied lazily on
	// accept and decline, so the sweep only tidies rows nobody touched.
	if _, err := s.cronScheduler.AddFunc("@hourly", s.sweepInvitations); err != nil {
		logger.Errorf("[Scheduler] Failed to add invitation sweep: %v", err)
	}

	// Nightly audit retention cleanup.
	if _, err := s.cronScheduler.AddFunc("0 3 * * *", s.cleanupAuditLogs); err != nil {
		logger.Errorf("[Scheduler] Failed to add audit cleanup: %v", err)
	}

	s.cronScheduler.Start()
	logger.Infof("[Scheduler] Started")
}

func (s *SchedulerService) Stop() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
		logger.Infof("[Scheduler] Stopped")
	}
}

func (s *SchedulerService) sweepInvitations() {
	count, err := s.invitations.ExpireStale()
	if err != nil {
		logger.Errorf("[Scheduler] Invitation sweep failed: %v", err)
		return
	}
	if count > 0 {
		logger.Infof("[Scheduler] Expired %d stale invitations", count)
	}
}

func (s *SchedulerService) cleanupAuditLogs() {
	count, err := s.audit.Cleanup(s.cfg.Audit.RetentionDays)
	if err != nil {
		logger.Errorf("[Scheduler] Audit cleanup failed: %v", err)
		return
	}
	if count > 0 {
		logger.Infof("[Scheduler] Deleted %d audit entries past retention", count)
	}
}
