package service

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/model"
)

func testAuthService(t *testing.T) (*AuthService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}
	return NewAuthService(cfg, nil, client), mr
}

func TestGenerateTokenRoundTrip(t *testing.T) {
	auth, _ := testAuthService(t)
	user := &model.User{ID: 7, Role: model.RoleLecturer}

	token, err := auth.GenerateToken(context.Background(), user)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 7 || claims.Role != model.RoleLecturer {
		t.Fatalf("claims = %+v, want user 7 lecturer", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	auth, _ := testAuthService(t)
	other, _ := testAuthService(t)
	other.cfg.JWTSecret = "different-secret"

	token, err := other.GenerateToken(context.Background(), &model.User{ID: 1, Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := auth.ValidateToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestStudentSingleDeviceSession(t *testing.T) {
	auth, mr := testAuthService(t)
	ctx := context.Background()
	student := &model.User{ID: 42, Role: model.RoleStudent}

	token, err := auth.GenerateToken(ctx, student)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if !mr.Exists(config.CacheKey.StudentSessionKey(42)) {
		t.Fatal("expected session key in redis after student login")
	}

	if _, err := auth.GenerateToken(ctx, student); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Fatalf("second login err = %v, want ErrSessionAlreadyActive", err)
	}

	// Staff reset frees the slot.
	if err := auth.ResetStudentSession(ctx, 42); err != nil {
		t.Fatalf("ResetStudentSession: %v", err)
	}
	if _, err := auth.GenerateToken(ctx, student); err != nil {
		t.Fatalf("login after reset: %v", err)
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	// The old token's JTI no longer matches the stored session.
	if err := auth.ValidateStudentSession(ctx, 42, claims.ID); err == nil {
		t.Fatal("expected stale JTI to be rejected after re-login")
	}
}

func TestStaffLoginSkipsSessionLock(t *testing.T) {
	auth, mr := testAuthService(t)
	ctx := context.Background()
	lecturer := &model.User{ID: 9, Role: model.RoleLecturer}

	for i := 0; i < 2; i++ {
		if _, err := auth.GenerateToken(ctx, lecturer); err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
	}
	if mr.Exists(config.CacheKey.StudentSessionKey(9)) {
		t.Fatal("staff logins must not create a session lock")
	}
}

func TestLogoutReleasesStudentSession(t *testing.T) {
	auth, mr := testAuthService(t)
	ctx := context.Background()
	student := &model.User{ID: 5, Role: model.RoleStudent}

	token, err := auth.GenerateToken(ctx, student)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if err := auth.Logout(ctx, claims); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if mr.Exists(config.CacheKey.StudentSessionKey(5)) {
		t.Fatal("session key should be gone after logout")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	auth, _ := testAuthService(t)

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := auth.CheckPassword(hash, "s3cret"); err != nil {
		t.Fatalf("CheckPassword: %v", err)
	}
	if err := auth.CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
}
