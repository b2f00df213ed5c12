package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/pixvault/internal/model"
)

// newTestDB returns a fresh in-memory database that is closed when the test
// finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// fixedClock pins db.now to a controllable instant.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func useClock(db *DB, start time.Time) *fixedClock {
	c := &fixedClock{t: start.UTC()}
	db.now = c.now
	return c
}

// createTestUser inserts a GitHub-backed user and fails the test on error.
func createTestUser(t *testing.T, db *DB, githubID, name string) *model.User {
	t.Helper()
	u := &model.User{
		GitHubID:    githubID,
		DisplayName: name,
		Email:       name + "@example.com",
	}
	if err := db.Create(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"mountains", "mountains"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\x`, `c:\\x`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
