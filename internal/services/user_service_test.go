package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticus/internal/models"
	"ticus/pkg/auth"
)

func newTestUserService(t *testing.T) *UserService {
	t.Helper()

	jwtAuth, err := auth.NewLocalJWTAuth("test-secret-at-least-32-characters!!", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("failed to create JWT auth: %v", err)
	}
	return NewUserService(newTestDB(t), jwtAuth)
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &models.RegisterRequest{
		Email:    "Student@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if resp.User.Email != "student@example.com" {
		t.Errorf("email not normalized: %q", resp.User.Email)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("expected both tokens to be issued")
	}

	login, err := svc.Login(ctx, &models.LoginRequest{
		Email:    "student@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.User.ID != resp.User.ID {
		t.Errorf("login returned different user")
	}
}

func TestUserService_RegisterDuplicateEmail(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	req := &models.RegisterRequest{Email: "a@b.com", Password: "password1"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := svc.Register(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserService_RegisterRejectsWeakInput(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, &models.RegisterRequest{Email: "not-an-email", Password: "password1"}); err == nil {
		t.Error("expected error for invalid email")
	}
	if _, err := svc.Register(ctx, &models.RegisterRequest{Email: "a@b.com", Password: "short"}); err == nil {
		t.Error("expected error for short password")
	}
}

func TestUserService_LoginWrongPassword(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, &models.RegisterRequest{Email: "a@b.com", Password: "password1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := svc.Login(ctx, &models.LoginRequest{Email: "a@b.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, &models.LoginRequest{Email: "nobody@b.com", Password: "password1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestUserService_Refresh(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &models.RegisterRequest{Email: "a@b.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, resp.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if refreshed.User.ID != resp.User.ID {
		t.Error("refresh returned different user")
	}
	if refreshed.AccessToken == "" {
		t.Error("expected a new access token")
	}

	if _, err := svc.Refresh(ctx, resp.AccessToken); err == nil {
		t.Error("access token must not be accepted as refresh token")
	}
}
