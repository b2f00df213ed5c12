package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

var _ repository.FavoriteRepository = (*DB)(nil)

const favoriteColumns = `id, user_id, image_id, image_url, thumbnail_url, photographer, photographer_url,
	description, tags, created_at`

func scanFavorite(row interface{ Scan(...any) error }) (*model.Favorite, error) {
	var (
		f    model.Favorite
		tags string
	)
	if err := row.Scan(
		&f.ID, &f.UserID, &f.ImageID, &f.ImageURL, &f.ThumbnailURL,
		&f.Photographer, &f.PhotographerURL, &f.Description, &tags, &f.CreatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := scanJSON[string](tags)
	if err != nil {
		return nil, fmt.Errorf("decoding favorite tags: %w", err)
	}
	f.Tags = parsed
	return &f, nil
}

// CreateFavorite inserts a favorite. The (user_id, image_id) unique index
// arbitrates concurrent duplicates; the loser gets apperror.ErrConflict.
func (db *DB) CreateFavorite(ctx context.Context, fav *model.Favorite) error {
	tags, err := jsonColumn(fav.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding favorite tags: %w", err)
	}

	fav.ID = xid.New().String()
	fav.CreatedAt = db.now()
	if fav.Tags == nil {
		fav.Tags = []string{}
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO favorites (`+favoriteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fav.ID, fav.UserID, fav.ImageID, fav.ImageURL, fav.ThumbnailURL,
		fav.Photographer, fav.PhotographerURL, fav.Description, tags, fav.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("image already in favorites")
		}
		return fmt.Errorf("sqlite: creating favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the user's favorites newest first.
func (db *DB) ListFavorites(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Favorite, error) {
	opts = opts.Normalize()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+favoriteColumns+` FROM favorites
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing favorites: %w", err)
	}
	defer rows.Close()

	favs := make([]model.Favorite, 0, opts.Limit)
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning favorite row: %w", err)
		}
		favs = append(favs, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating favorites: %w", err)
	}
	return favs, nil
}

// GetFavoriteByImage returns the user's favorite for imageID.
func (db *DB) GetFavoriteByImage(ctx context.Context, userID, imageID string) (*model.Favorite, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+favoriteColumns+` FROM favorites WHERE user_id = ? AND image_id = ?`,
		userID, imageID,
	)
	f, err := scanFavorite(row)
	if err != nil {
		return nil, notFoundOr(err, "favorite", imageID, "getting favorite")
	}
	return f, nil
}

// DeleteFavorite removes the user's favorite whose record id or image id
// equals key.
func (db *DB) DeleteFavorite(ctx context.Context, userID, key string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND (id = ? OR image_id = ?)`,
		userID, key, key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting favorite %s: %w", key, err)
	}
	return rowsAffectedOrNotFound(res, "favorite", key)
}
