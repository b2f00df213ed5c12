package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
)

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "gh-1", "sess")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	s := &model.Session{
		IDHash:    "hash-1",
		UserID:    u.ID,
		CreatedAt: now,
		TouchedAt: now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}
	if err := db.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := db.GetSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID = %q, want %q", got.UserID, u.ID)
	}
	if !got.ExpiresAt.Equal(s.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, s.ExpiresAt)
	}

	later := now.Add(25 * time.Hour)
	if err := db.TouchSession(ctx, "hash-1", later, later.Add(7*24*time.Hour)); err != nil {
		t.Fatalf("TouchSession() error = %v", err)
	}
	got, _ = db.GetSession(ctx, "hash-1")
	if !got.TouchedAt.Equal(later) {
		t.Errorf("TouchedAt = %v, want %v", got.TouchedAt, later)
	}

	if err := db.DeleteSession(ctx, "hash-1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := db.GetSession(ctx, "hash-1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteSession_MissingIsNoop(t *testing.T) {
	db := newTestDB(t)

	if err := db.DeleteSession(context.Background(), "never-existed"); err != nil {
		t.Errorf("DeleteSession() error = %v, want nil", err)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "gh-1", "sess")
	ctx := context.Background()
	now := time.Now().UTC()

	for i, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		s := &model.Session{
			IDHash:    []string{"a", "b", "c"}[i],
			UserID:    u.ID,
			CreatedAt: now,
			TouchedAt: now,
			ExpiresAt: exp,
		}
		if err := db.SaveSession(ctx, s); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	n, err := db.PurgeExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredSessions() error = %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}
	if _, err := db.GetSession(ctx, "c"); err != nil {
		t.Errorf("live session was purged: %v", err)
	}
}
