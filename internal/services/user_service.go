package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticus/internal/database"
	"ticus/internal/models"
	"ticus/pkg/auth"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// UserService handles account registration and token issuance against
// the local users table.
type UserService struct {
	db  *database.DB
	jwt *auth.LocalJWTAuth
}

// NewUserService creates a new user service.
func NewUserService(db *database.DB, jwt *auth.LocalJWTAuth) *UserService {
	return &UserService{db: db, jwt: jwt}
}

// Register creates a new account and returns a token pair.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("valid email is required")
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := s.jwt.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:          uuid.New().String(),
		Email:       email,
		Role:        "user",
		CreatedAt:   now,
		LastLoginAt: now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, hash, user.Role, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issueTokens(user)
}

// Login verifies credentials and returns a token pair.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, hash, err := s.getByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	ok, err := s.jwt.VerifyPassword(hash, req.Password)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = now
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, now.Unix(), user.ID); err != nil {
		return nil, fmt.Errorf("failed to update login time: %w", err)
	}

	return s.issueTokens(user)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	claims, err := s.jwt.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

// GetByID returns one user without the password hash.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	var created, lastLogin int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, role, created_at, last_login_at FROM users WHERE id = ?`, userID).
		Scan(&user.ID, &user.Email, &user.Role, &created, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = time.Unix(created, 0).UTC()
	user.LastLoginAt = time.Unix(lastLogin, 0).UTC()
	return &user, nil
}

func (s *UserService) getByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var user models.User
	var hash string
	var created, lastLogin int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at, last_login_at
		FROM users WHERE email = ?`, email).
		Scan(&user.ID, &user.Email, &hash, &user.Role, &created, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = time.Unix(created, 0).UTC()
	user.LastLoginAt = time.Unix(lastLogin, 0).UTC()
	return &user, hash, nil
}

func (s *UserService) issueTokens(user *models.User) (*models.AuthResponse, error) {
	access, refresh, err := s.jwt.GenerateTokens(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}
	return &models.AuthResponse{User: user, AccessToken: access, RefreshToken: refresh}, nil
}
