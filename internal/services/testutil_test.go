package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/teamsync-hq/teamsync/backend/internal/config"
	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Workspace{},
		&models.Project{},
		&models.Membership{},
		&models.Invitation{},
		&models.JoinRequest{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// recordingQueue captures enqueued tasks without processing them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []recordedTask
}

type recordedTask struct {
	Type    string
	Payload []byte
}

func (q *recordingQueue) Enqueue(taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, recordedTask{Type: taskType, Payload: data})
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) count(taskType string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, task := range q.tasks {
		if task.Type == taskType {
			n++
		}
	}
	return n
}

func testConfig() *config.Config {
	return config.DefaultConfig()
}

func newTestAudit(db *gorm.DB) (*AuditService, *recordingQueue) {
	queue := &recordingQueue{}
	return NewAuditService(db, queue), queue
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		Name:         strings.SplitN(email, "@", 2)[0],
		Role:         "user",
		AccountState: models.AccountRegistered,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return &user
}

func actorFor(user *models.User) Actor {
	return Actor{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IP:        "127.0.0.1",
		UserAgent: "test",
	}
}

func createWorkspace(t *testing.T, db *gorm.DB, owner *models.User, visibility models.Visibility) *models.Workspace {
	t.Helper()
	ws := models.Workspace{
		Name:                       "Workspace " + owner.Name,
		Slug:                       fmt.Sprintf("ws-%s-%s", owner.Name, visibility),
		WorkspaceType:              models.WorkspaceTeam,
		Visibility:                 visibility,
		OwnerID:                    owner.ID,
		DefaultProjectVisibility:   models.VisibilityPrivate,
		AllowMemberProjectCreation: true,
		RequireJoinApproval:        true,
	}
	if err := db.Create(&ws).Error; err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	addMember(t, db, models.EntityWorkspace, ws.ID, owner.ID, models.RoleWorkspaceOwner)
	return &ws
}

func createProject(t *testing.T, db *gorm.DB, owner *models.User, ws *models.Workspace, visibility models.Visibility) *models.Project {
	t.Helper()
	p := models.Project{
		Name:       "Project " + owner.Name,
		Slug:       fmt.Sprintf("proj-%s-%s", owner.Name, visibility),
		OwnerID:    owner.ID,
		Visibility: visibility,
	}
	if ws != nil {
		p.WorkspaceID = &ws.ID
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	addMember(t, db, models.EntityProject, p.ID, owner.ID, models.RoleLead)
	return &p
}

func addMember(t *testing.T, db *gorm.DB, kind models.EntityKind, entityID, userID uint, role models.Role) *models.Membership {
	t.Helper()
	m := models.Membership{
		EntityKind:       kind,
		EntityID:         entityID,
		UserID:           userID,
		Role:             role,
		PermissionBundle: models.PolicyFor(kind, role),
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
	return &m
}

// wantAppError fails unless err is an application error with the given
// HTTP status.
func wantAppError(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError with status %d, got %v", status, err)
	}
	if appErr.HTTPStatus != status {
		t.Fatalf("expected status %d, got %d (%s)", status, appErr.HTTPStatus, appErr.Message)
	}
}

func syncVersionOf(t *testing.T, db *gorm.DB, kind models.EntityKind, id uint) int64 {
	t.Helper()
	e, err := loadEntity(db, kind, id)
	if err != nil {
		t.Fatalf("failed to load entity: %v", err)
	}
	return e.SyncVersion
}

func membershipCount(t *testing.T, db *gorm.DB, kind models.EntityKind, entityID, userID uint) int64 {
	t.Helper()
	var count int64
	db.Model(&models.Membership{}).
		Where("entity_kind = ? AND entity_id = ? AND user_id = ?", kind, entityID, userID).
		Count(&count)
	return count
}
