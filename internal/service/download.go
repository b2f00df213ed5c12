package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

// DownloadTracker registers a download with the image API and returns the
// URL the file is served from.
type DownloadTracker interface {
	TrackDownload(ctx context.Context, imageID string) (string, error)
}

type DownloadService struct {
	tracker DownloadTracker
	repo    repository.DownloadRepository
	counter StatCounter
	logger  *slog.Logger
}

func NewDownloadService(tracker DownloadTracker, repo repository.DownloadRepository, counter StatCounter, logger *slog.Logger) *DownloadService {
	return &DownloadService{tracker: tracker, repo: repo, counter: counter, logger: logger}
}

// Record tracks a download of in.ImageID with the image API and, once the
// API accepted it, stores the record. The download URL comes from the API,
// never from the client.
func (s *DownloadService) Record(ctx context.Context, userID string, in ImageInput, quality model.Quality) (*model.DownloadRecord, error) {
	ref, err := in.ref()
	if err != nil {
		return nil, err
	}
	if quality == "" {
		quality = model.QualityRegular
	}
	if !quality.Valid() {
		return nil, apperror.ValidationFailed("quality", "quality must be raw, full, regular or small")
	}

	downloadURL, err := s.tracker.TrackDownload(ctx, ref.ImageID)
	if err != nil {
		return nil, err
	}

	d := &model.DownloadRecord{
		UserID:      userID,
		ImageRef:    ref,
		DownloadURL: downloadURL,
		Quality:     quality,
	}
	if err := s.repo.CreateDownload(ctx, d); err != nil {
		return nil, fmt.Errorf("service/download: recording download: %w", err)
	}
	bumpStat(ctx, s.counter, s.logger, userID, model.StatDownloads, 1)
	return d, nil
}

func (s *DownloadService) List(ctx context.Context, userID string, opts repository.ListOptions) ([]model.DownloadRecord, error) {
	ds, err := s.repo.ListDownloads(ctx, userID, opts.Normalize())
	if err != nil {
		return nil, fmt.Errorf("service/download: listing downloads: %w", err)
	}
	return ds, nil
}

// Delete removes one of the user's download records. The download counter
// is a lifetime total and is not decremented.
func (s *DownloadService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteDownload(ctx, userID, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/download: deleting download: %w", err)
	}
	return nil
}
