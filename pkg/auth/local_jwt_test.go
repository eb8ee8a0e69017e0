package auth

import (
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer", "Bearer abc123", "abc123", false},
		{"lowercase bearer", "bearer abc123", "abc123", false},
		{"empty header", "", "", true},
		{"missing token", "Bearer ", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"no scheme", "abc123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractToken(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractToken(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestGenerateAndVerifyTokens(t *testing.T) {
	a, err := NewLocalJWTAuth("test-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewLocalJWTAuth failed: %v", err)
	}

	access, refresh, err := a.GenerateTokens("user-1", "u@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	user, err := a.VerifyAccessToken(access)
	if err != nil {
		t.Fatalf("VerifyAccessToken failed: %v", err)
	}
	if user.ID != "user-1" || user.Email != "u@example.com" || user.Role != "user" {
		t.Errorf("Unexpected user from access token: %+v", user)
	}

	claims, err := a.VerifyRefreshToken(refresh)
	if err != nil {
		t.Fatalf("VerifyRefreshToken failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("Expected UserID user-1, got %s", claims.UserID)
	}
	if claims.TokenID == "" {
		t.Error("Expected non-empty TokenID on refresh token")
	}
}

func TestVerifyAccessToken_WrongSecret(t *testing.T) {
	a, _ := NewLocalJWTAuth("secret-a", 0, 0)
	b, _ := NewLocalJWTAuth("secret-b", 0, 0)

	access, _, err := a.GenerateTokens("user-1", "u@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	if _, err := b.VerifyAccessToken(access); err == nil {
		t.Error("Expected verification to fail with wrong secret")
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	a, _ := NewLocalJWTAuth("secret", 0, 0)

	hash, err := a.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	ok, err := a.VerifyPassword(hash, "hunter2")
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if !ok {
		t.Error("Expected correct password to verify")
	}

	ok, err = a.VerifyPassword(hash, "wrong")
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if ok {
		t.Error("Expected wrong password to fail verification")
	}
}

func TestVerifyPassword_InvalidFormat(t *testing.T) {
	a, _ := NewLocalJWTAuth("secret", 0, 0)

	if _, err := a.VerifyPassword("bcrypt$whatever", "pw"); err == nil {
		t.Error("Expected error for non-argon2id hash")
	}
	if _, err := a.VerifyPassword("argon2id$onlyonepart", "pw"); err == nil {
		t.Error("Expected error for malformed hash")
	}
}
