package services

import (
	"time"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/gorm"
)

// SyncService answers offline clients asking whether their cached copy of
// an entity is stale. The server-side counter only ever moves forward;
// clients compare it against the version they last synced.
type SyncService struct {
	db *gorm.DB
}

func NewSyncService(db *gorm.DB) *SyncService {
	return &SyncService{db: db}
}

// SyncStatus is the check-status response.
type SyncStatus struct {
	EntityKind    models.EntityKind `json:"entity_kind"`
	EntityID      uint              `json:"entity_id"`
	ServerVersion int64             `json:"server_version"`
	ClientVersion int64             `json:"client_version"`
	NeedsSync     bool              `json:"needs_sync"`
	LastSynced    *time.Time        `json:"last_synced"`
}

// CheckStatus compares the client's cached version against the server's.
// Members only. The response carries the last recorded sync time; the
// check itself then stamps a fresh one on the entity and the user, so the
// first ever check reports a null LastSynced.
func (s *SyncService) CheckStatus(actor Actor, kind models.EntityKind, entityID uint, clientVersion int64) (*SyncStatus, error) {
	e, err := loadEntity(s.db, kind, entityID)
	if err != nil {
		return nil, err
	}

	_, _, isMember := resolveBundle(s.db, actor.UserID, e)
	if !isMember && !actor.IsAdmin() {
		return nil, response.NewForbidden("you are not a member of this " + e.resourceType())
	}

	lastSynced := e.LastSynced
	now := time.Now()

	var model interface{}
	if kind == models.EntityWorkspace {
		model = &models.Workspace{}
	} else {
		model = &models.Project{}
	}
	s.db.Model(model).Where("id = ?", entityID).UpdateColumn("last_synced", now)
	s.db.Model(&models.User{}).Where("id = ?", actor.UserID).UpdateColumn("last_sync", now)

	return &SyncStatus{
		EntityKind:    kind,
		EntityID:      entityID,
		ServerVersion: e.SyncVersion,
		ClientVersion: clientVersion,
		NeedsSync:     clientVersion < e.SyncVersion,
		LastSynced:    lastSynced,
	}, nil
}
