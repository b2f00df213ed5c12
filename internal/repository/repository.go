// Package repository declares the storage contracts the service layer depends
// on. The sqlite subpackage is the production implementation; tests use
// in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/pixvault/internal/model"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps the options to the allowed page window.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

type UserRepository interface {
	// FindByProvider returns apperror.ErrNotFound when no user carries
	// externalID in the column belonging to provider.
	FindByProvider(ctx context.Context, provider model.Provider, externalID string) (*model.User, error)
	// Create returns apperror.ErrConflict if the provider id is already taken.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	IncrementStat(ctx context.Context, userID string, stat model.Stat, delta int64) error
}

type SessionRepository interface {
	GetSession(ctx context.Context, idHash string) (*model.Session, error)
	SaveSession(ctx context.Context, session *model.Session) error
	TouchSession(ctx context.Context, idHash string, touchedAt, expiresAt time.Time) error
	// DeleteSession is a no-op when the session does not exist.
	DeleteSession(ctx context.Context, idHash string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type SearchHistoryRepository interface {
	CreateSearch(ctx context.Context, entry *model.SearchHistoryEntry) error
	ListSearches(ctx context.Context, userID string, opts ListOptions) ([]model.SearchHistoryEntry, error)
}

// SearchStatsRepository is the read-only aggregation side of search history.
// Ties in Count are broken by first occurrence.
type SearchStatsRepository interface {
	TopTerms(ctx context.Context, since time.Time, limit int) ([]model.TermCount, error)
	TopTermsForUser(ctx context.Context, userID string, limit int) ([]model.TermCount, error)
	SuggestTerms(ctx context.Context, prefix string, limit int) ([]model.TermCount, error)
}

type FavoriteRepository interface {
	// CreateFavorite returns apperror.ErrConflict for a duplicate (user, image).
	CreateFavorite(ctx context.Context, fav *model.Favorite) error
	ListFavorites(ctx context.Context, userID string, opts ListOptions) ([]model.Favorite, error)
	GetFavoriteByImage(ctx context.Context, userID, imageID string) (*model.Favorite, error)
	// DeleteFavorite matches key against the record id or the image id.
	DeleteFavorite(ctx context.Context, userID, key string) error
}

type CollectionRepository interface {
	CreateCollection(ctx context.Context, c *model.Collection) error
	GetCollection(ctx context.Context, userID, id string) (*model.Collection, error)
	ListCollections(ctx context.Context, userID string) ([]model.Collection, error)
	CountCollections(ctx context.Context, userID string) (int64, error)
	// UpdateCollection writes every mutable field and the image list. It
	// returns apperror.ErrConflict when c.Version is stale.
	UpdateCollection(ctx context.Context, c *model.Collection) error
	DeleteCollection(ctx context.Context, userID, id string) error
}

type DownloadRepository interface {
	CreateDownload(ctx context.Context, d *model.DownloadRecord) error
	ListDownloads(ctx context.Context, userID string, opts ListOptions) ([]model.DownloadRecord, error)
	DeleteDownload(ctx context.Context, userID, id string) error
}
