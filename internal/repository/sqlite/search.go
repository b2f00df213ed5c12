package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

var (
	_ repository.SearchHistoryRepository = (*DB)(nil)
	_ repository.SearchStatsRepository   = (*DB)(nil)
)

// CreateSearch appends a history entry. Entries are never updated or deleted.
func (db *DB) CreateSearch(ctx context.Context, entry *model.SearchHistoryEntry) error {
	entry.ID = xid.New().String()
	entry.Timestamp = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, term, orientation, color, order_by, results_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Term,
		entry.Filters.Orientation,
		entry.Filters.Color,
		entry.Filters.OrderBy,
		entry.ResultsCount,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating search history entry: %w", err)
	}
	return nil
}

// ListSearches returns the user's searches newest first.
func (db *DB) ListSearches(ctx context.Context, userID string, opts repository.ListOptions) ([]model.SearchHistoryEntry, error) {
	opts = opts.Normalize()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, term, orientation, color, order_by, results_count, created_at
		 FROM search_history
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing searches: %w", err)
	}
	defer rows.Close()

	entries := make([]model.SearchHistoryEntry, 0, opts.Limit)
	for rows.Next() {
		var e model.SearchHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Term,
			&e.Filters.Orientation, &e.Filters.Color, &e.Filters.OrderBy,
			&e.ResultsCount, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning search row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating searches: %w", err)
	}
	return entries, nil
}

// TERM AGGREGATION
//
// All three reports group on the exact stored term and order by
// count DESC, then by the rowid of the term's first occurrence ASC. The
// second key makes ties deterministic: the term that was searched first wins.

// TopTerms returns the most frequent terms across all users. A zero since
// means "all time".
func (db *DB) TopTerms(ctx context.Context, since time.Time, limit int) ([]model.TermCount, error) {
	if since.IsZero() {
		return db.queryTermCounts(ctx,
			`SELECT term, COUNT(*) AS n, MIN(rowid) AS first_seen
			 FROM search_history
			 GROUP BY term
			 ORDER BY n DESC, first_seen ASC
			 LIMIT ?`,
			limit,
		)
	}
	return db.queryTermCounts(ctx,
		`SELECT term, COUNT(*) AS n, MIN(rowid) AS first_seen
		 FROM search_history
		 WHERE created_at >= ?
		 GROUP BY term
		 ORDER BY n DESC, first_seen ASC
		 LIMIT ?`,
		since.UTC(), limit,
	)
}

// TopTermsForUser is TopTerms restricted to one user's history.
func (db *DB) TopTermsForUser(ctx context.Context, userID string, limit int) ([]model.TermCount, error) {
	return db.queryTermCounts(ctx,
		`SELECT term, COUNT(*) AS n, MIN(rowid) AS first_seen
		 FROM search_history
		 WHERE user_id = ?
		 GROUP BY term
		 ORDER BY n DESC, first_seen ASC
		 LIMIT ?`,
		userID, limit,
	)
}

// SuggestTerms returns frequent terms starting with prefix. SQLite's LIKE is
// case-insensitive for ASCII, which gives the case-insensitive prefix match.
func (db *DB) SuggestTerms(ctx context.Context, prefix string, limit int) ([]model.TermCount, error) {
	return db.queryTermCounts(ctx,
		`SELECT term, COUNT(*) AS n, MIN(rowid) AS first_seen
		 FROM search_history
		 WHERE term LIKE ? ESCAPE '\'
		 GROUP BY term
		 ORDER BY n DESC, first_seen ASC
		 LIMIT ?`,
		escapeLike(prefix)+"%", limit,
	)
}

func (db *DB) queryTermCounts(ctx context.Context, query string, args ...any) ([]model.TermCount, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating terms: %w", err)
	}
	defer rows.Close()

	counts := []model.TermCount{}
	for rows.Next() {
		var (
			tc        model.TermCount
			firstSeen sql.NullInt64
		)
		if err := rows.Scan(&tc.Term, &tc.Count, &firstSeen); err != nil {
			return nil, fmt.Errorf("sqlite: scanning term count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating term counts: %w", err)
	}
	return counts, nil
}
