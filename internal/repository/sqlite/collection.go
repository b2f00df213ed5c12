package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

var _ repository.CollectionRepository = (*DB)(nil)

const collectionColumns = `id, user_id, name, description, is_public, tags, images, version, created_at, updated_at`

func scanCollection(row interface{ Scan(...any) error }) (*model.Collection, error) {
	var (
		c            model.Collection
		tags, images string
	)
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Description, &c.IsPublic,
		&tags, &images, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if c.Tags, err = scanJSON[string](tags); err != nil {
		return nil, fmt.Errorf("decoding collection tags: %w", err)
	}
	if c.Images, err = scanJSON[model.CollectionImage](images); err != nil {
		return nil, fmt.Errorf("decoding collection images: %w", err)
	}
	return &c, nil
}

// CreateCollection inserts a collection owned by c.UserID.
func (db *DB) CreateCollection(ctx context.Context, c *model.Collection) error {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Images == nil {
		c.Images = []model.CollectionImage{}
	}
	tags, err := jsonColumn(c.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding collection tags: %w", err)
	}
	images, err := jsonColumn(c.Images)
	if err != nil {
		return fmt.Errorf("sqlite: encoding collection images: %w", err)
	}

	now := db.now()
	c.ID = xid.New().String()
	c.Version = 1
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO collections (`+collectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Description, c.IsPublic,
		tags, images, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating collection: %w", err)
	}
	return nil
}

// GetCollection returns the collection only if userID owns it; other users'
// collections are reported as not found.
func (db *DB) GetCollection(ctx context.Context, userID, id string) (*model.Collection, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	c, err := scanCollection(row)
	if err != nil {
		return nil, notFoundOr(err, "collection", id, "getting collection")
	}
	return c, nil
}

// ListCollections returns all of the user's collections newest first.
func (db *DB) ListCollections(ctx context.Context, userID string) ([]model.Collection, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing collections: %w", err)
	}
	defer rows.Close()

	collections := []model.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning collection row: %w", err)
		}
		collections = append(collections, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating collections: %w", err)
	}
	return collections, nil
}

func (db *DB) CountCollections(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE user_id = ?`, userID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting collections: %w", err)
	}
	return n, nil
}

// UpdateCollection is a compare-and-swap on version: the row is written only
// if nobody else updated it since c was read. On success c.Version and
// c.UpdatedAt reflect the new row.
func (db *DB) UpdateCollection(ctx context.Context, c *model.Collection) error {
	tags, err := jsonColumn(c.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding collection tags: %w", err)
	}
	images, err := jsonColumn(c.Images)
	if err != nil {
		return fmt.Errorf("sqlite: encoding collection images: %w", err)
	}

	updatedAt := db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE collections
		 SET name = ?, description = ?, is_public = ?, tags = ?, images = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND user_id = ? AND version = ?`,
		c.Name, c.Description, c.IsPublic, tags, images,
		updatedAt,
		c.ID, c.UserID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating collection %s: %w", c.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		// Either the row is gone / not ours, or the version moved on.
		if _, err := db.GetCollection(ctx, c.UserID, c.ID); err != nil {
			return err
		}
		return apperror.Conflict("collection was modified concurrently")
	}

	c.Version++
	c.UpdatedAt = updatedAt
	return nil
}

// DeleteCollection removes a collection owned by userID.
func (db *DB) DeleteCollection(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM collections WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting collection %s: %w", id, err)
	}
	return rowsAffectedOrNotFound(res, "collection", id)
}
