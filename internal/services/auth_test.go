package services

import (
	"testing"
	"time"

	"github.com/teamsync-hq/teamsync/backend/internal/models"
	"github.com/teamsync-hq/teamsync/backend/internal/utils"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	utils.SetJWTSecret("test-secret")
	db := newTestDB(t)
	cfg := testConfig()
	return NewAuthService(db, &cfg.JWT)
}

func TestRegister(t *testing.T) {
	svc := newAuthService(t)

	user, err := svc.Register(&RegisterRequest{
		Email:    "new@example.com",
		Password: "secret123",
		Name:     "New User",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.AccountState != models.AccountRegistered {
		t.Errorf("AccountState = %q, expected registered", user.AccountState)
	}
	if user.Password == "secret123" {
		t.Error("password should be stored hashed")
	}

	_, err = svc.Register(&RegisterRequest{
		Email:    "new@example.com",
		Password: "other456",
		Name:     "Duplicate",
	})
	if err == nil {
		t.Error("duplicate email should be rejected")
	}
}

func TestRegister_BindsPendingInvitations(t *testing.T) {
	svc := newAuthService(t)
	db := svc.db

	owner := createUser(t, db, "owner@example.com")
	ws := createWorkspace(t, db, owner, models.VisibilityPrivate)
	db.Create(&models.Invitation{
		EntityKind:   models.EntityWorkspace,
		EntityID:     ws.ID,
		InviterID:    owner.ID,
		InviteeEmail: "future@example.com",
		Role:         models.RoleMember,
		Status:       models.InvitationPending,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	})

	user, err := svc.Register(&RegisterRequest{
		Email:    "future@example.com",
		Password: "secret123",
		Name:     "Future Member",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	var inv models.Invitation
	if err := db.Where("invitee_email = ?", "future@example.com").First(&inv).Error; err != nil {
		t.Fatalf("invitation lookup failed: %v", err)
	}
	if inv.InviteeID == nil || *inv.InviteeID != user.ID {
		t.Error("pending invitation should be bound to the new account")
	}
}

func TestLoginAndRefresh(t *testing.T) {
	svc := newAuthService(t)
	db := svc.db

	if _, err := svc.Register(&RegisterRequest{
		Email:    "user@example.com",
		Password: "secret123",
		Name:     "User",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := svc.Login(&LoginRequest{Email: "user@example.com", Password: "wrong"}, "", "")
	if err == nil {
		t.Error("wrong password should be rejected")
	}

	result, err := svc.Login(&LoginRequest{Email: "user@example.com", Password: "secret123"}, "10.0.0.1", "ua")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("login should issue a token pair")
	}

	claims, err := utils.ParseToken(result.AccessToken)
	if err != nil {
		t.Fatalf("issued token should parse: %v", err)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("token email = %q", claims.Email)
	}

	refreshed, err := svc.Refresh(result.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if refreshed.RefreshToken == result.RefreshToken {
		t.Error("refresh should rotate the token")
	}

	// The old token was rotated out and cannot be replayed.
	if _, err := svc.Refresh(result.RefreshToken, "", ""); err == nil {
		t.Error("rotated refresh token should be rejected")
	}

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hashRefreshToken(result.RefreshToken)).First(&stored).Error; err != nil {
		t.Fatalf("old token row missing: %v", err)
	}
	if stored.RevokedAt == nil || stored.ReplacedByTokenID == nil {
		t.Error("rotation should mark the old token revoked and link its replacement")
	}
}

func TestRevokeRefreshToken(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Register(&RegisterRequest{
		Email:    "user@example.com",
		Password: "secret123",
		Name:     "User",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	result, err := svc.Login(&LoginRequest{Email: "user@example.com", Password: "secret123"}, "", "")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := svc.RevokeRefreshToken(result.RefreshToken); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := svc.Refresh(result.RefreshToken, "", ""); err == nil {
		t.Error("revoked token should be rejected")
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	svc := newAuthService(t)
	db := svc.db

	if _, err := svc.Register(&RegisterRequest{
		Email:    "user@example.com",
		Password: "secret123",
		Name:     "User",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	db.Model(&models.User{}).Where("email = ?", "user@example.com").Update("account_state", models.AccountSuspended)

	if _, err := svc.Login(&LoginRequest{Email: "user@example.com", Password: "secret123"}, "", ""); err == nil {
		t.Error("suspended account should not log in")
	}
}

func TestChangePassword(t *testing.T) {
	svc := newAuthService(t)

	user, err := svc.Register(&RegisterRequest{
		Email:    "user@example.com",
		Password: "secret123",
		Name:     "User",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	err = svc.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "next456"})
	if err == nil {
		t.Error("wrong old password should be rejected")
	}

	if err := svc.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "secret123", NewPassword: "next456"}); err != nil {
		t.Fatalf("change failed: %v", err)
	}
	if _, err := svc.Login(&LoginRequest{Email: "user@example.com", Password: "next456"}, "", ""); err != nil {
		t.Errorf("login with the new password failed: %v", err)
	}
}

func TestCreateAdminIfNotExists(t *testing.T) {
	svc := newAuthService(t)
	db := svc.db

	if err := svc.CreateAdminIfNotExists(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if err := svc.CreateAdminIfNotExists(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	var count int64
	db.Model(&models.User{}).Where("role = ?", "admin").Count(&count)
	if count != 1 {
		t.Errorf("admin accounts = %d, expected 1", count)
	}
}
