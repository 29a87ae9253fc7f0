package services

import (
	"encoding/json"
	"time"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/pkg/logger"
	"gorm.io/gorm"
)

// AuditRecord is the task payload for a single audit event.
type AuditRecord struct {
	UserID       *uint                  `json:"user_id,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   *uint                  `json:"resource_id,omitempty"`
	IP           string                 `json:"ip,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// AuditService records membership and invitation activity. Emission is
// fire-and-forget: a failure to record never fails the operation that
// produced the event.
type AuditService struct {
	db    *gorm.DB
	queue TaskQueue
}

func NewAuditService(db *gorm.DB, queue TaskQueue) *AuditService {
	return &AuditService{db: db, queue: queue}
}

// Emit queues an audit event for the given actor and resource. Errors are
// logged and swallowed.
func (s *AuditService) Emit(actor Actor, action, resourceType string, resourceID uint, details map[string]interface{}) {
	rec := &AuditRecord{
		Action:       action,
		ResourceType: resourceType,
		IP:           actor.IP,
		UserAgent:    actor.UserAgent,
		Details:      details,
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		rec.UserID = &uid
	}
	if resourceID != 0 {
		rid := resourceID
		rec.ResourceID = &rid
	}

	if err := s.queue.Enqueue(TaskTypeAudit, rec); err != nil {
		logger.Warnf("[Audit] Failed to enqueue %s on %s/%d: %v", action, resourceType, resourceID, err)
	}
}

// Record persists an audit record. Called by the task worker.
func (s *AuditService) Record(rec *AuditRecord) error {
	entry := models.AuditLog{
		UserID:       rec.UserID,
		Action:       rec.Action,
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		IP:           rec.IP,
		UserAgent:    rec.UserAgent,
	}
	if len(rec.Details) > 0 {
		data, err := json.Marshal(rec.Details)
		if err == nil {
			entry.Details = string(data)
		}
	}
	return s.db.Create(&entry).Error
}

// AuditListRequest filters the audit trail for the admin endpoint.
type AuditListRequest struct {
	UserID       *uint
	Action       string
	ResourceType string
	Page         int
	PageSize     int
}

// List returns a page of audit entries, newest first.
func (s *AuditService) List(req *AuditListRequest) ([]models.AuditLog, int64, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.AuditLog{})
	if req.UserID != nil {
		query = query.Where("user_id = ?", *req.UserID)
	}
	if req.Action != "" {
		query = query.Where("action = ?", req.Action)
	}
	if req.ResourceType != "" {
		query = query.Where("resource_type = ?", req.ResourceType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.AuditLog
	err := query.Order("created_at DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&entries).Error
	return entries, total, err
}

// Cleanup deletes audit entries older than the retention window.
func (s *AuditService) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
