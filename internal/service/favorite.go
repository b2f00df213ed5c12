package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

type FavoriteService struct {
	repo    repository.FavoriteRepository
	counter StatCounter
	logger  *slog.Logger
}

func NewFavoriteService(repo repository.FavoriteRepository, counter StatCounter, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{repo: repo, counter: counter, logger: logger}
}

// Add saves an image to the user's favorites. Favoriting the same image
// twice is a conflict and leaves the counter untouched.
func (s *FavoriteService) Add(ctx context.Context, userID string, in ImageInput, tags []string) (*model.Favorite, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, err
	}
	tags, err = cleanTags(tags)
	if err != nil {
		return nil, err
	}

	fav := &model.Favorite{UserID: userID, ImageRef: ref, Tags: tags}
	if err := s.repo.CreateFavorite(ctx, fav); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/favorite: creating favorite: %w", err)
	}
	bumpStat(ctx, s.counter, s.logger, userID, model.StatFavorites, 1)
	return fav, nil
}

func (s *FavoriteService) List(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Favorite, error) {
	favs, err := s.repo.ListFavorites(ctx, userID, opts.Normalize())
	if err != nil {
		return nil, fmt.Errorf("service/favorite: listing favorites: %w", err)
	}
	return favs, nil
}

// Status reports whether imageID is among the user's favorites, and the
// favorite record when it is.
func (s *FavoriteService) Status(ctx context.Context, userID, imageID string) (*model.Favorite, bool, error) {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return nil, false, apperror.ValidationFailed("imageId", "imageId is required")
	}

	fav, err := s.repo.GetFavoriteByImage(ctx, userID, imageID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("service/favorite: checking favorite: %w", err)
	}
	return fav, true, nil
}

// Remove deletes the favorite whose record id or image id equals key.
func (s *FavoriteService) Remove(ctx context.Context, userID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return apperror.ValidationFailed("id", "favorite id is required")
	}

	if err := s.repo.DeleteFavorite(ctx, userID, key); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/favorite: deleting favorite: %w", err)
	}
	bumpStat(ctx, s.counter, s.logger, userID, model.StatFavorites, -1)
	return nil
}
