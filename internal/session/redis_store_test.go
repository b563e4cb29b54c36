package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"intakeflow/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return rs, mr
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer rs.Close()
	defer mr.Close()

	ctx := context.Background()
	user := store.User{ID: "user-123", DisplayName: "Ada", Role: "reviewer_manager"}

	if err := rs.SaveRefreshSession(ctx, "hash-1", user, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	got, err := rs.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, got.ID)
	}
	if got.Role != "reviewer_manager" {
		t.Errorf("expected role reviewer_manager, got %s", got.Role)
	}
}

func TestLookupDefaultsEmptyRole(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer rs.Close()
	defer mr.Close()

	ctx := context.Background()
	user := store.User{ID: "user-222", DisplayName: "Grace"}

	if err := rs.SaveRefreshSession(ctx, "hash-2", user, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	got, err := rs.LookupRefreshSession(ctx, "hash-2")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if got.Role != "intake_user" {
		t.Errorf("expected default role intake_user, got %s", got.Role)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer rs.Close()
	defer mr.Close()

	ctx := context.Background()
	user := store.User{ID: "user-456"}

	if err := rs.SaveRefreshSession(ctx, "hash-exp", user, time.Now().Add(time.Millisecond)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	mr.FastForward(2 * time.Millisecond)

	if _, err := rs.LookupRefreshSession(ctx, "hash-exp"); err == nil {
		t.Error("expected error for expired session, got nil")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, mr := setupTestRedis(t)
	defer rs.Close()
	defer mr.Close()

	ctx := context.Background()
	user := store.User{ID: "user-789"}

	if err := rs.SaveRefreshSession(ctx, "hash-3", user, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "hash-3"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, "hash-3"); err == nil {
		t.Error("expected error after revoke, got nil")
	}

	// Revoking again is a no-op.
	if err := rs.RevokeRefreshSession(ctx, "hash-3"); err != nil {
		t.Errorf("second revoke failed: %v", err)
	}
}
