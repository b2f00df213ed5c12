package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

var _ repository.DownloadRepository = (*DB)(nil)

// CreateDownload appends a download record.
func (db *DB) CreateDownload(ctx context.Context, d *model.DownloadRecord) error {
	d.ID = xid.New().String()
	d.CreatedAt = db.now()
	if d.Quality == "" {
		d.Quality = model.QualityRegular
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO downloads (id, user_id, image_id, image_url, thumbnail_url, photographer, description,
			download_url, quality, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.ImageID, d.ImageURL, d.ThumbnailURL, d.Photographer, d.Description,
		d.DownloadURL, string(d.Quality), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating download: %w", err)
	}
	return nil
}

// ListDownloads returns the user's downloads newest first.
func (db *DB) ListDownloads(ctx context.Context, userID string, opts repository.ListOptions) ([]model.DownloadRecord, error) {
	opts = opts.Normalize()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, image_id, image_url, thumbnail_url, photographer, description,
			download_url, quality, created_at
		 FROM downloads
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing downloads: %w", err)
	}
	defer rows.Close()

	downloads := make([]model.DownloadRecord, 0, opts.Limit)
	for rows.Next() {
		var (
			d       model.DownloadRecord
			quality string
		)
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.ImageID, &d.ImageURL, &d.ThumbnailURL, &d.Photographer, &d.Description,
			&d.DownloadURL, &quality, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning download row: %w", err)
		}
		d.Quality = model.Quality(quality)
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating downloads: %w", err)
	}
	return downloads, nil
}

// DeleteDownload removes one of the user's download records.
func (db *DB) DeleteDownload(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM downloads WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting download %s: %w", id, err)
	}
	return rowsAffectedOrNotFound(res, "download", id)
}
