package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

// maxUpdateAttempts bounds the read-modify-write loop on a collection
// whose version keeps moving under us.
const maxUpdateAttempts = 3

type CollectionService struct {
	repo   repository.CollectionRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewCollectionService(repo repository.CollectionRepository, logger *slog.Logger) *CollectionService {
	return &CollectionService{repo: repo, logger: logger, now: time.Now}
}

// CollectionInput carries the editable fields of a collection. A nil field
// is left unchanged on update.
type CollectionInput struct {
	Name        *string
	Description *string
	IsPublic    *bool
	Tags        []string
	TagsSet     bool
}

func (s *CollectionService) Create(ctx context.Context, userID string, in CollectionInput) (*model.Collection, error) {
	var name string
	if in.Name != nil {
		name = *in.Name
	}
	name, err := requireText("name", "collection name", name, MaxNameLength)
	if err != nil {
		return nil, err
	}

	c := &model.Collection{UserID: userID, Name: name, Tags: []string{}, Images: []model.CollectionImage{}}
	if err := applyCollectionInput(c, in); err != nil {
		return nil, err
	}

	if err := s.repo.CreateCollection(ctx, c); err != nil {
		return nil, fmt.Errorf("service/collection: creating collection: %w", err)
	}
	s.logger.Info("collection created", slog.String("userID", userID), slog.String("collectionID", c.ID))
	return c, nil
}

func (s *CollectionService) Get(ctx context.Context, userID, id string) (*model.Collection, error) {
	c, err := s.repo.GetCollection(ctx, userID, id)
	if err != nil {
		return nil, wrapCollectionErr("getting", err)
	}
	return c, nil
}

func (s *CollectionService) List(ctx context.Context, userID string) ([]model.Collection, error) {
	cs, err := s.repo.ListCollections(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/collection: listing collections: %w", err)
	}
	return cs, nil
}

// Update applies the non-nil fields of in.
func (s *CollectionService) Update(ctx context.Context, userID, id string, in CollectionInput) (*model.Collection, error) {
	if in.Name != nil {
		name, err := requireText("name", "collection name", *in.Name, MaxNameLength)
		if err != nil {
			return nil, err
		}
		in.Name = &name
	}

	return s.mutate(ctx, userID, id, func(c *model.Collection) error {
		if in.Name != nil {
			c.Name = *in.Name
		}
		return applyCollectionInput(c, in)
	})
}

func (s *CollectionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteCollection(ctx, userID, id); err != nil {
		return wrapCollectionErr("deleting", err)
	}
	return nil
}

// AddImage appends an image to the collection. An image already present
// is a conflict and the collection is left as it was.
func (s *CollectionService) AddImage(ctx context.Context, userID, id string, in ImageInput) (*model.Collection, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, id, func(c *model.Collection) error {
		if c.IndexOf(ref.ImageID) >= 0 {
			return apperror.Conflict("image already in collection")
		}
		c.Images = append(c.Images, model.CollectionImage{ImageRef: ref, AddedAt: s.now().UTC()})
		return nil
	})
}

// RemoveImage drops an image from the collection. Removing an image that
// is not there returns the collection unchanged.
func (s *CollectionService) RemoveImage(ctx context.Context, userID, id, imageID string) (*model.Collection, error) {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return nil, apperror.ValidationFailed("imageId", "imageId is required")
	}

	return s.mutate(ctx, userID, id, func(c *model.Collection) error {
		i := c.IndexOf(imageID)
		if i < 0 {
			return errUnchanged
		}
		c.Images = append(c.Images[:i], c.Images[i+1:]...)
		return nil
	})
}

// errUnchanged tells mutate the edit was a no-op and nothing needs writing.
var errUnchanged = errors.New("unchanged")

// mutate runs a read-modify-write on one collection, retrying when another
// writer bumped the version between our read and our write.
func (s *CollectionService) mutate(ctx context.Context, userID, id string, edit func(*model.Collection) error) (*model.Collection, error) {
	var lastErr error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		c, err := s.repo.GetCollection(ctx, userID, id)
		if err != nil {
			return nil, wrapCollectionErr("getting", err)
		}

		if err := edit(c); err != nil {
			if errors.Is(err, errUnchanged) {
				return c, nil
			}
			return nil, err
		}

		err = s.repo.UpdateCollection(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, wrapCollectionErr("updating", err)
		}

		lastErr = err
		s.logger.Debug("collection version conflict, retrying",
			slog.String("collectionID", id),
			slog.Int("attempt", attempt),
		)
	}
	return nil, lastErr
}

func applyCollectionInput(c *model.Collection, in CollectionInput) error {
	if in.Description != nil {
		desc, err := optionalText("description", "description", *in.Description, MaxDescriptionLength)
		if err != nil {
			return err
		}
		c.Description = desc
	}
	if in.IsPublic != nil {
		c.IsPublic = *in.IsPublic
	}
	if in.TagsSet {
		tags, err := cleanTags(in.Tags)
		if err != nil {
			return err
		}
		c.Tags = tags
	}
	return nil
}

// wrapCollectionErr passes typed errors through and wraps the rest.
func wrapCollectionErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("service/collection: %s collection: %w", op, err)
}
