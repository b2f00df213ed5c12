package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, google_id, facebook_id, github_id, display_name, email, avatar, bio, theme,
	total_searches, total_downloads, favorite_count, created_at, last_active`

// providerColumn maps a provider to its id column. The switch is the only
// place a column name is chosen from input, and it only yields constants.
func providerColumn(p model.Provider) (string, error) {
	switch p {
	case model.ProviderGoogle:
		return "google_id", nil
	case model.ProviderFacebook:
		return "facebook_id", nil
	case model.ProviderGitHub:
		return "github_id", nil
	}
	return "", fmt.Errorf("sqlite: unknown provider %q", p)
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u                            model.User
		googleID, facebookID, gitHub sql.NullString
		theme                        string
	)
	err := row.Scan(
		&u.ID,
		&googleID,
		&facebookID,
		&gitHub,
		&u.DisplayName,
		&u.Email,
		&u.Avatar,
		&u.Bio,
		&theme,
		&u.Stats.TotalSearches,
		&u.Stats.TotalDownloads,
		&u.Stats.FavoriteCount,
		&u.CreatedAt,
		&u.LastActive,
	)
	if err != nil {
		return nil, err
	}
	u.GoogleID = googleID.String
	u.FacebookID = facebookID.String
	u.GitHubID = gitHub.String
	u.Preferences.Theme = model.Theme(theme)
	return &u, nil
}

// FindByProvider looks a user up by the external id of one provider.
func (db *DB) FindByProvider(ctx context.Context, provider model.Provider, externalID string) (*model.User, error) {
	col, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+col+` = ?`,
		externalID,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, "user", string(provider)+":"+externalID, "finding user")
	}
	return u, nil
}

// Create inserts a new user. ID, timestamps and the default theme are filled
// in on the caller's struct.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	if !user.HasIdentity() {
		return apperror.ValidationFailed("provider", "user needs at least one provider id")
	}

	now := db.now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.LastActive = now
	if user.Preferences.Theme == "" {
		user.Preferences.Theme = model.ThemeLight
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, google_id, facebook_id, github_id, display_name, email, avatar, bio, theme,
			created_at, last_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullIfEmpty(user.GoogleID),
		nullIfEmpty(user.FacebookID),
		nullIfEmpty(user.GitHubID),
		user.DisplayName,
		user.Email,
		user.Avatar,
		user.Bio,
		string(user.Preferences.Theme),
		user.CreatedAt,
		user.LastActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user already exists for this provider id")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, "user", id, "getting user")
	}
	return u, nil
}

// UpdateProfile writes the user-editable fields.
func (db *DB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.LastActive = db.now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET display_name = ?, bio = ?, theme = ?, last_active = ? WHERE id = ?`,
		user.DisplayName,
		user.Bio,
		string(user.Preferences.Theme),
		user.LastActive,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	return rowsAffectedOrNotFound(res, "user", user.ID)
}

// IncrementStat adds delta to one counter in a single UPDATE, so concurrent
// requests for the same user cannot lose updates. Counters never go below 0.
func (db *DB) IncrementStat(ctx context.Context, userID string, stat model.Stat, delta int64) error {
	var col string
	switch stat {
	case model.StatSearches, model.StatDownloads, model.StatFavorites:
		col = string(stat)
	default:
		return fmt.Errorf("sqlite: unknown stat %q", stat)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+col+` = MAX(`+col+` + ?, 0), last_active = ? WHERE id = ?`,
		delta,
		db.now(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing %s for user %s: %w", col, userID, err)
	}
	return rowsAffectedOrNotFound(res, "user", userID)
}
