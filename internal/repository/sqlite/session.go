package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// GetSession returns the stored session, expired or not; expiry is the
// caller's decision.
func (db *DB) GetSession(ctx context.Context, idHash string) (*model.Session, error) {
	var s model.Session
	err := db.conn.QueryRowContext(ctx,
		`SELECT id_hash, user_id, created_at, touched_at, expires_at FROM sessions WHERE id_hash = ?`,
		idHash,
	).Scan(&s.IDHash, &s.UserID, &s.CreatedAt, &s.TouchedAt, &s.ExpiresAt)
	if err != nil {
		return nil, notFoundOr(err, "session", "(redacted)", "getting session")
	}
	return &s, nil
}

// SaveSession inserts or replaces a session row.
func (db *DB) SaveSession(ctx context.Context, s *model.Session) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id_hash, user_id, created_at, touched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id_hash) DO UPDATE SET
			user_id = excluded.user_id,
			touched_at = excluded.touched_at,
			expires_at = excluded.expires_at`,
		s.IDHash,
		s.UserID,
		s.CreatedAt.UTC(),
		s.TouchedAt.UTC(),
		s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving session: %w", err)
	}
	return nil
}

// TouchSession slides the expiry of an existing session.
func (db *DB) TouchSession(ctx context.Context, idHash string, touchedAt, expiresAt time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE sessions SET touched_at = ?, expires_at = ? WHERE id_hash = ?`,
		touchedAt.UTC(),
		expiresAt.UTC(),
		idHash,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching session: %w", err)
	}
	return rowsAffectedOrNotFound(res, "session", "(redacted)")
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (db *DB) DeleteSession(ctx context.Context, idHash string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = ?`, idHash); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes every session whose expiry is at or before now
// and returns how many were removed.
func (db *DB) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
