package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
)

func newInvitationService(t *testing.T) (*InvitationService, *recordingQueue, *JoinRequestService, *MembershipService) {
	t.Helper()
	db := newTestDB(t)
	audit, queue := newTestAudit(db)
	inv := NewInvitationService(db, audit, queue, testConfig())
	jr := NewJoinRequestService(db, audit)
	ms := NewMembershipService(db, audit)
	return inv, queue, jr, ms
}

func TestIssue_RequiresInviteRights(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	guest := createUser(t, db, "guest@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)
	addMember(t, db, models.EntityWorkspace, ws.ID, guest.ID, models.RoleGuest)

	_, err := svc.Issue(actorFor(guest), models.EntityWorkspace, ws.ID, &IssueRequest{
		Email: "invitee@example.com",
	})
	wantAppError(t, err, http.StatusForbidden)

	inv, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{
		Email: "invitee@example.com",
	})
	if err != nil {
		t.Fatalf("owner should be able to invite: %v", err)
	}
	if inv.Status != models.InvitationPending {
		t.Errorf("Status = %q, expected pending", inv.Status)
	}
	if inv.Role != models.RoleMember {
		t.Errorf("Role = %q, expected default member role", inv.Role)
	}
	if inv.Token == "" {
		t.Error("Token should be set")
	}
	wantExpiry := time.Now().Add(7 * 24 * time.Hour)
	if inv.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || inv.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, expected about %v", inv.ExpiresAt, wantExpiry)
	}
}

func TestIssue_InvalidRole(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	// project roles are not valid on workspaces
	_, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{
		Email: "invitee@example.com",
		Role:  models.RoleAnalyst,
	})
	wantAppError(t, err, http.StatusBadRequest)
}

func TestIssue_DuplicatePending(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	if _, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: "invitee@example.com"}); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	_, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: "invitee@example.com"})
	wantAppError(t, err, http.StatusConflict)
}

func TestIssue_AlreadyMember(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	member := createUser(t, db, "member@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)
	addMember(t, db, models.EntityWorkspace, ws.ID, member.ID, models.RoleMember)

	_, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: member.Email})
	wantAppError(t, err, http.StatusConflict)

	_, err = svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: owner.Email})
	wantAppError(t, err, http.StatusConflict)
}

func TestIssue_RefreshesExpiredPendingInPlace(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	first, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: "invitee@example.com"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	oldToken := first.Token

	// Age the pending row past its expiry without sweeping it.
	stale := time.Now().Add(-time.Hour)
	db.Model(&models.Invitation{}).Where("id = ?", first.ID).Update("expires_at", stale)

	second, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{
		Email: "invitee@example.com",
		Role:  models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("re-issue over expired pending failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected the expired row to be refreshed in place, got new ID %d (was %d)", second.ID, first.ID)
	}
	if second.Status != models.InvitationPending {
		t.Errorf("Status = %q, expected pending", second.Status)
	}
	if second.Role != models.RoleAdmin {
		t.Errorf("Role = %q, expected the refreshed role", second.Role)
	}
	if second.Token == oldToken {
		t.Error("refresh should rotate the token")
	}
	if !second.ExpiresAt.After(time.Now()) {
		t.Error("refreshed expiry should be in the future")
	}

	var count int64
	db.Model(&models.Invitation{}).
		Where("entity_kind = ? AND entity_id = ? AND invitee_email = ?", models.EntityWorkspace, ws.ID, "invitee@example.com").
		Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 invitation row, got %d", count)
	}
}

func TestIssue_QueuesNotification(t *testing.T) {
	svc, queue, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	if _, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: "invitee@example.com"}); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if n := queue.count(TaskTypeInvitationEmail); n != 1 {
		t.Errorf("expected 1 queued invitation email, got %d", n)
	}
	if n := queue.count(TaskTypeAudit); n == 0 {
		t.Error("expected an audit task for the issue")
	}
}

func TestAccept_CreatesMembership(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	invitee := createUser(t, db, "invitee@example.com")
	p := createProject(t, db, owner, nil, models.VisibilityPrivate)

	inv, err := svc.Issue(actorFor(owner), models.EntityProject, p.ID, &IssueRequest{
		Email: invitee.Email,
		Role:  models.RoleAnalyst,
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	versionBefore := syncVersionOf(t, db, models.EntityProject, p.ID)

	accepted, err := svc.Accept(actorFor(invitee), inv.ID)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if accepted.Status != models.InvitationAccepted {
		t.Errorf("Status = %q, expected accepted", accepted.Status)
	}
	if accepted.RespondedAt == nil {
		t.Error("RespondedAt should be set")
	}

	var m models.Membership
	if err := db.Where("entity_kind = ? AND entity_id = ? AND user_id = ?", models.EntityProject, p.ID, invitee.ID).First(&m).Error; err != nil {
		t.Fatalf("membership not created: %v", err)
	}
	if m.Role != models.RoleAnalyst {
		t.Errorf("Role = %q, expected analyst", m.Role)
	}
	want := models.PolicyFor(models.EntityProject, models.RoleAnalyst)
	if m.PermissionBundle != want {
		t.Errorf("PermissionBundle = %+v, expected the analyst policy %+v", m.PermissionBundle, want)
	}
	if !m.CanAnalyze || m.CanInvite {
		t.Error("analyst should analyze but not invite")
	}

	if after := syncVersionOf(t, db, models.EntityProject, p.ID); after != versionBefore+1 {
		t.Errorf("sync version = %d, expected %d", after, versionBefore+1)
	}

	var u models.User
	db.First(&u, invitee.ID)
	if u.AccountState != models.AccountActive {
		t.Errorf("AccountState = %q, expected active after first join", u.AccountState)
	}
}

func TestAccept_Idempotent(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	invitee := createUser(t, db, "invitee@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	inv, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: invitee.Email})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := svc.Accept(actorFor(invitee), inv.ID); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}
	versionAfterFirst := syncVersionOf(t, db, models.EntityWorkspace, ws.ID)

	if _, err := svc.Accept(actorFor(invitee), inv.ID); err != nil {
		t.Fatalf("second accept should be a no-op, got %v", err)
	}

	if n := membershipCount(t, db, models.EntityWorkspace, ws.ID, invitee.ID); n != 1 {
		t.Errorf("membership count = %d, expected 1", n)
	}
	if after := syncVersionOf(t, db, models.EntityWorkspace, ws.ID); after != versionAfterFirst {
		t.Errorf("second accept must not bump the sync version: %d != %d", after, versionAfterFirst)
	}
}

func TestAccept_ExpiredPending(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	invitee := createUser(t, db, "invitee@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	inv, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: invitee.Email})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	versionBefore := syncVersionOf(t, db, models.EntityWorkspace, ws.ID)

	db.Model(&models.Invitation{}).Where("id = ?", inv.ID).Update("expires_at", time.Now().Add(-time.Hour))

	_, err = svc.Accept(actorFor(invitee), inv.ID)
	wantAppError(t, err, http.StatusGone)

	var stored models.Invitation
	db.First(&stored, inv.ID)
	if stored.Status != models.InvitationExpired {
		t.Errorf("Status = %q, expected expired after lazy sweep", stored.Status)
	}
	if n := membershipCount(t, db, models.EntityWorkspace, ws.ID, invitee.ID); n != 0 {
		t.Errorf("expired accept must not create a membership, got %d", n)
	}
	if after := syncVersionOf(t, db, models.EntityWorkspace, ws.ID); after != versionBefore {
		t.Errorf("expired accept must not bump the sync version")
	}
}

func TestAccept_AddressedToSomeoneElse(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	stranger := createUser(t, db, "stranger@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	inv, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: "invitee@example.com"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	_, err = svc.Accept(actorFor(stranger), inv.ID)
	wantAppError(t, err, http.StatusNotFound)
}

func TestDecline(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	invitee := createUser(t, db, "invitee@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	inv, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: invitee.Email})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	versionBefore := syncVersionOf(t, db, models.EntityWorkspace, ws.ID)

	declined, err := svc.Decline(actorFor(invitee), inv.ID)
	if err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if declined.Status != models.InvitationDeclined {
		t.Errorf("Status = %q, expected declined", declined.Status)
	}

	if n := membershipCount(t, db, models.EntityWorkspace, ws.ID, invitee.ID); n != 0 {
		t.Errorf("decline must not create a membership, got %d", n)
	}
	if after := syncVersionOf(t, db, models.EntityWorkspace, ws.ID); after != versionBefore {
		t.Error("decline must not bump the sync version")
	}

	// Declining again is a no-op, accepting afterwards is a conflict.
	if _, err := svc.Decline(actorFor(invitee), inv.ID); err != nil {
		t.Errorf("second decline should be a no-op, got %v", err)
	}
	_, err = svc.Accept(actorFor(invitee), inv.ID)
	wantAppError(t, err, http.StatusConflict)
}

func TestCancel(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	outsider := createUser(t, db, "outsider@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	inv, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: "invitee@example.com"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	err = svc.Cancel(actorFor(outsider), inv.ID)
	wantAppError(t, err, http.StatusForbidden)

	if err := svc.Cancel(actorFor(owner), inv.ID); err != nil {
		t.Fatalf("inviter cancel failed: %v", err)
	}

	var stored models.Invitation
	db.First(&stored, inv.ID)
	if stored.Status != models.InvitationDeclined {
		t.Errorf("Status = %q, expected declined after cancel", stored.Status)
	}

	err = svc.Cancel(actorFor(owner), inv.ID)
	wantAppError(t, err, http.StatusConflict)
}

func TestListForUser_OpenInvitationsOnly(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	invitee := createUser(t, db, "invitee@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)
	p := createProject(t, db, owner, nil, models.VisibilityPrivate)

	open, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: invitee.Email})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	stale, err := svc.Issue(actorFor(owner), models.EntityProject, p.ID, &IssueRequest{Email: invitee.Email, Role: models.RoleViewer})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	db.Model(&models.Invitation{}).Where("id = ?", stale.ID).Update("expires_at", time.Now().Add(-time.Hour))

	invitations, err := svc.ListForUser(actorFor(invitee))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(invitations) != 1 {
		t.Fatalf("expected 1 open invitation, got %d", len(invitations))
	}
	if invitations[0].ID != open.ID {
		t.Errorf("expected invitation %d, got %d", open.ID, invitations[0].ID)
	}
}

func TestExpireStale(t *testing.T) {
	svc, _, _, _ := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)

	fresh, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: "fresh@example.com"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	stale, err := svc.Issue(actorFor(owner), models.EntityWorkspace, ws.ID, &IssueRequest{Email: "stale@example.com"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	db.Model(&models.Invitation{}).Where("id = ?", stale.ID).Update("expires_at", time.Now().Add(-time.Hour))

	count, err := svc.ExpireStale()
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 swept invitation, got %d", count)
	}

	var stored models.Invitation
	db.First(&stored, stale.ID)
	if stored.Status != models.InvitationExpired {
		t.Errorf("stale Status = %q, expected expired", stored.Status)
	}
	stored = models.Invitation{}
	db.First(&stored, fresh.ID)
	if stored.Status != models.InvitationPending {
		t.Errorf("fresh Status = %q, expected pending", stored.Status)
	}
}

// Exercises the documented end-to-end flow: invite, accept, remove,
// rejoin via join request.
func TestMembershipLifecycle(t *testing.T) {
	svc, _, jrSvc, msSvc := newInvitationService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	analyst := createUser(t, db, "analyst@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPublic)
	p := createProject(t, db, owner, ws, models.VisibilityPublic)

	inv, err := svc.Issue(actorFor(owner), models.EntityProject, p.ID, &IssueRequest{
		Email: analyst.Email,
		Role:  models.RoleAnalyst,
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.Accept(actorFor(analyst), inv.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if v := syncVersionOf(t, db, models.EntityProject, p.ID); v != 1 {
		t.Errorf("sync version after accept = %d, expected 1", v)
	}

	if err := msSvc.RemoveMember(actorFor(owner), models.EntityProject, p.ID, analyst.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if v := syncVersionOf(t, db, models.EntityProject, p.ID); v != 2 {
		t.Errorf("sync version after removal = %d, expected 2", v)
	}
	if n := membershipCount(t, db, models.EntityProject, p.ID, analyst.ID); n != 0 {
		t.Fatalf("membership should be gone, got %d rows", n)
	}

	// Removal does not leave a tombstone; the user can come back in.
	jr, err := jrSvc.Request(actorFor(analyst), models.EntityProject, p.ID, "let me back in")
	if err != nil {
		t.Fatalf("join request failed: %v", err)
	}
	if _, err := jrSvc.Approve(actorFor(owner), models.EntityProject, p.ID, jr.ID, models.RoleAnalyst); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if n := membershipCount(t, db, models.EntityProject, p.ID, analyst.ID); n != 1 {
		t.Errorf("membership after rejoin = %d, expected 1", n)
	}
	if v := syncVersionOf(t, db, models.EntityProject, p.ID); v != 3 {
		t.Errorf("sync version after rejoin = %d, expected 3", v)
	}
}
