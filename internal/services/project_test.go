package services

import (
	"net/http"
	"testing"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
)

func newProjectService(t *testing.T) *ProjectService {
	t.Helper()
	db := newTestDB(t)
	audit, _ := newTestAudit(db)
	return NewProjectService(db, audit)
}

func TestProjectCreate_Standalone(t *testing.T) {
	svc := newProjectService(t)
	db := svc.db

	user := createUser(t, db, "maker@example.com")

	p, err := svc.Create(actorFor(user), &CreateProjectRequest{Name: "Churn Model"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if p.Slug != "churn-model" {
		t.Errorf("Slug = %q", p.Slug)
	}
	if p.Visibility != models.VisibilityPrivate {
		t.Errorf("Visibility = %q, expected private default", p.Visibility)
	}
	if p.WorkspaceID != nil {
		t.Error("standalone project should have no workspace")
	}

	var m models.Membership
	if err := db.Where("entity_kind = ? AND entity_id = ? AND user_id = ?", models.EntityProject, p.ID, user.ID).First(&m).Error; err != nil {
		t.Fatalf("owner membership not created: %v", err)
	}
	if m.Role != models.RoleLead {
		t.Errorf("owner membership role = %q, expected lead", m.Role)
	}
}

func TestProjectCreate_TeamRequiresWorkspace(t *testing.T) {
	svc := newProjectService(t)
	user := createUser(t, svc.db, "maker@example.com")

	_, err := svc.Create(actorFor(user), &CreateProjectRequest{
		Name:       "Churn Model",
		Visibility: models.VisibilityTeam,
	})
	wantAppError(t, err, http.StatusBadRequest)
}

func TestProjectCreate_InWorkspace(t *testing.T) {
	svc := newProjectService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	member := createUser(t, db, "member@example.com")
	guest := createUser(t, db, "guest@example.com")
	outsider := createUser(t, db, "outsider@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)
	addMember(t, db, models.EntityWorkspace, ws.ID, member.ID, models.RoleMember)
	addMember(t, db, models.EntityWorkspace, ws.ID, guest.ID, models.RoleGuest)

	_, err := svc.Create(actorFor(outsider), &CreateProjectRequest{Name: "P", WorkspaceID: &ws.ID})
	wantAppError(t, err, http.StatusForbidden)

	// Guests can view but not create.
	_, err = svc.Create(actorFor(guest), &CreateProjectRequest{Name: "P", WorkspaceID: &ws.ID})
	wantAppError(t, err, http.StatusForbidden)

	p, err := svc.Create(actorFor(member), &CreateProjectRequest{Name: "Member Project", WorkspaceID: &ws.ID})
	if err != nil {
		t.Fatalf("member create failed: %v", err)
	}
	// Visibility falls back to the workspace default.
	if p.Visibility != models.VisibilityPrivate {
		t.Errorf("Visibility = %q, expected the workspace default", p.Visibility)
	}
}

func TestProjectCreate_MemberCreationDisabled(t *testing.T) {
	svc := newProjectService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	member := createUser(t, db, "member@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)
	addMember(t, db, models.EntityWorkspace, ws.ID, member.ID, models.RoleMember)
	db.Model(&models.Workspace{}).Where("id = ?", ws.ID).Update("allow_member_project_creation", false)

	_, err := svc.Create(actorFor(member), &CreateProjectRequest{Name: "P", WorkspaceID: &ws.ID})
	wantAppError(t, err, http.StatusForbidden)

	// Settings managers bypass the restriction.
	if _, err := svc.Create(actorFor(owner), &CreateProjectRequest{Name: "P", WorkspaceID: &ws.ID}); err != nil {
		t.Errorf("owner create should bypass the restriction: %v", err)
	}
}

func TestProjectCreate_SlugScopedPerWorkspace(t *testing.T) {
	svc := newProjectService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	wsA := createWorkspace(t, db, owner, models.VisibilityPrivate)
	wsB := createWorkspace(t, db, owner, models.VisibilityInternal)

	a, err := svc.Create(actorFor(owner), &CreateProjectRequest{Name: "Pipeline", WorkspaceID: &wsA.ID})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	b, err := svc.Create(actorFor(owner), &CreateProjectRequest{Name: "Pipeline", WorkspaceID: &wsB.ID})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if a.Slug != "pipeline" || b.Slug != "pipeline" {
		t.Errorf("slugs should not clash across workspaces: %q, %q", a.Slug, b.Slug)
	}

	c, err := svc.Create(actorFor(owner), &CreateProjectRequest{Name: "Pipeline", WorkspaceID: &wsA.ID})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if c.Slug != "pipeline-2" {
		t.Errorf("in-workspace duplicate should get a suffix, got %q", c.Slug)
	}
}

func TestProjectGet_Visibility(t *testing.T) {
	svc := newProjectService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	wsMember := createUser(t, db, "member@example.com")
	stranger := createUser(t, db, "stranger@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)
	addMember(t, db, models.EntityWorkspace, ws.ID, wsMember.ID, models.RoleMember)
	team := createProject(t, db, owner, ws, models.VisibilityTeam)

	// Team visibility reaches parent-workspace members but no further.
	if _, err := svc.Get(actorFor(wsMember), team.ID); err != nil {
		t.Errorf("workspace member should see the team project: %v", err)
	}
	_, err := svc.Get(actorFor(stranger), team.ID)
	wantAppError(t, err, http.StatusNotFound)
}

func TestProjectUpdate(t *testing.T) {
	svc := newProjectService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	analyst := createUser(t, db, "analyst@example.com")
	p := createProject(t, db, owner, nil, models.VisibilityPrivate)
	addMember(t, db, models.EntityProject, p.ID, analyst.ID, models.RoleAnalyst)

	_, err := svc.Update(actorFor(analyst), p.ID, &UpdateProjectRequest{})
	wantAppError(t, err, http.StatusForbidden)

	// Standalone projects cannot become team-visible.
	bad := models.VisibilityTeam
	_, err = svc.Update(actorFor(owner), p.ID, &UpdateProjectRequest{Visibility: &bad})
	wantAppError(t, err, http.StatusBadRequest)

	name := "Renamed"
	visibility := models.VisibilityPublic
	updated, err := svc.Update(actorFor(owner), p.ID, &UpdateProjectRequest{
		Name:       &name,
		Visibility: &visibility,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Renamed" || updated.Visibility != models.VisibilityPublic {
		t.Errorf("update not applied: %+v", updated)
	}
	if v := syncVersionOf(t, db, models.EntityProject, p.ID); v != 1 {
		t.Errorf("sync version = %d, expected 1", v)
	}
}

func TestProjectDelete(t *testing.T) {
	svc := newProjectService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	lead := createUser(t, db, "lead@example.com")
	p := createProject(t, db, owner, nil, models.VisibilityPrivate)
	addMember(t, db, models.EntityProject, p.ID, lead.ID, models.RoleLead)

	err := svc.Delete(actorFor(lead), p.ID)
	wantAppError(t, err, http.StatusForbidden)

	if err := svc.Delete(actorFor(owner), p.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var count int64
	db.Model(&models.Project{}).Where("id = ?", p.ID).Count(&count)
	if count != 0 {
		t.Error("deleted project should not be found by default queries")
	}
}
