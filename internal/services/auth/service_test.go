package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidateAccessTokenRoundtrip(t *testing.T) {
	manager := NewJWTManager("test-secret")
	svc := NewService(manager)

	token, expiresAt, err := manager.GenerateAccessToken(42, "sid-1", RoleUser, 10*time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("token must expire in the future: %s", expiresAt)
	}

	claims, err := svc.ValidateAccessToken(context.Background(), token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != 42 || claims.SID != "sid-1" || claims.Role != RoleUser {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateAccessTokenRejectsWrongSecret(t *testing.T) {
	minted := NewJWTManager("secret-a")
	svc := NewService(NewJWTManager("secret-b"))

	token, _, err := minted.GenerateAccessToken(7, "sid-7", RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateAccessToken(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	manager := NewJWTManager("test-secret")
	manager.now = func() time.Time { return time.Now().Add(-time.Hour) }
	svc := NewService(manager)

	token, _, err := manager.GenerateAccessToken(7, "sid-7", RoleUser, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateAccessToken(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestIdentityIsAdmin(t *testing.T) {
	if !(Identity{Role: "admin"}).IsAdmin() {
		t.Fatalf("role match must be case-insensitive")
	}
	if (Identity{Role: RoleUser}).IsAdmin() {
		t.Fatalf("user role must not be admin")
	}
}
