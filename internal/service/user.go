package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

const (
	DashboardRecentSearches  = 8
	DashboardTopSearches     = 5
	DashboardRecentDownloads = 5
)

// UserService serves the profile and dashboard pages.
type UserService struct {
	users       repository.UserRepository
	history     repository.SearchHistoryRepository
	stats       repository.SearchStatsRepository
	collections repository.CollectionRepository
	downloads   repository.DownloadRepository
	logger      *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	history repository.SearchHistoryRepository,
	stats repository.SearchStatsRepository,
	collections repository.CollectionRepository,
	downloads repository.DownloadRepository,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:       users,
		history:     history,
		stats:       stats,
		collections: collections,
		downloads:   downloads,
		logger:      logger,
	}
}

func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/user: getting profile: %w", err)
	}
	return u, nil
}

// ProfileInput holds the user-editable profile fields; nil means unchanged.
type ProfileInput struct {
	DisplayName *string
	Bio         *string
	Theme       *model.Theme
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/user: getting profile: %w", err)
	}

	if in.DisplayName != nil {
		name, err := requireText("displayName", "display name", *in.DisplayName, MaxNameLength)
		if err != nil {
			return nil, err
		}
		u.DisplayName = name
	}
	if in.Bio != nil {
		bio, err := optionalText("bio", "bio", *in.Bio, MaxBioLength)
		if err != nil {
			return nil, err
		}
		u.Bio = bio
	}
	if in.Theme != nil {
		if !in.Theme.Valid() {
			return nil, apperror.ValidationFailed("theme", "theme must be light, dark or auto")
		}
		u.Preferences.Theme = *in.Theme
	}

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("service/user: updating profile: %w", err)
	}
	return u, nil
}

// Dashboard assembles the user's counters, recent activity and top terms.
// The collection count is computed here; the other counters are read as
// stored.
func (s *UserService) Dashboard(ctx context.Context, userID string) (*model.Dashboard, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/user: getting user: %w", err)
	}

	collections, err := s.collections.CountCollections(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/user: counting collections: %w", err)
	}

	recent, err := s.history.ListSearches(ctx, userID, repository.ListOptions{Limit: DashboardRecentSearches})
	if err != nil {
		return nil, fmt.Errorf("service/user: recent searches: %w", err)
	}

	top, err := s.stats.TopTermsForUser(ctx, userID, DashboardTopSearches)
	if err != nil {
		return nil, fmt.Errorf("service/user: top searches: %w", err)
	}

	downloads, err := s.downloads.ListDownloads(ctx, userID, repository.ListOptions{Limit: DashboardRecentDownloads})
	if err != nil {
		return nil, fmt.Errorf("service/user: recent downloads: %w", err)
	}

	return &model.Dashboard{
		Stats: model.DashboardStats{
			UserStats:        u.Stats,
			CollectionsCount: collections,
		},
		RecentSearches:  recent,
		TopSearches:     top,
		RecentDownloads: downloads,
	}, nil
}
