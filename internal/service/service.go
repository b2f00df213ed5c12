// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)      → parses requests, writes responses
//	Service (business layer)  → validates, enforces rules, orchestrates
//	Repository (data layer)   → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests inject
// in-memory fakes. They return apperror values and know nothing of HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
)

const (
	MaxTermLength        = 100
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxBioLength         = 500
	MaxTags              = 20
	MaxTagLength         = 50
)

// StatCounter is the slice of the user store that maintains activity
// counters.
type StatCounter interface {
	IncrementStat(ctx context.Context, userID string, stat model.Stat, delta int64) error
}

// bumpStat adjusts a counter after its activity record was written. The
// record write has already succeeded, so a failure here is logged and
// swallowed: the counter drifts but the caller's request still succeeds.
func bumpStat(ctx context.Context, counter StatCounter, logger *slog.Logger, userID string, stat model.Stat, delta int64) {
	if err := counter.IncrementStat(ctx, userID, stat, delta); err != nil {
		logger.Warn("counter update failed",
			slog.String("userID", userID),
			slog.String("stat", string(stat)),
			slog.Int64("delta", delta),
			slog.Any("error", err),
		)
	}
}

// requireText trims s and checks it is present and at most max runes.
func requireText(field, label, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperror.ValidationFailed(field, label+" is required")
	}
	return optionalText(field, label, s, max)
}

// optionalText trims s and checks it is at most max runes.
func optionalText(field, label, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return "", apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or less", label, max))
	}
	return s, nil
}

// cleanTags trims tags, drops empties and duplicates, and enforces limits.
func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > MaxTags {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	return out, nil
}

// ImageInput is the image metadata a client sends when saving an image.
type ImageInput struct {
	ImageID         string
	ImageURL        string
	ThumbnailURL    string
	Photographer    string
	PhotographerURL string
	Description     string
}

func (in ImageInput) ref() (model.ImageRef, error) {
	id := strings.TrimSpace(in.ImageID)
	if id == "" {
		return model.ImageRef{}, apperror.ValidationFailed("imageId", "imageId is required")
	}
	url := strings.TrimSpace(in.ImageURL)
	if url == "" {
		return model.ImageRef{}, apperror.ValidationFailed("imageUrl", "imageUrl is required")
	}
	return model.ImageRef{
		ImageID:         id,
		ImageURL:        url,
		ThumbnailURL:    strings.TrimSpace(in.ThumbnailURL),
		Photographer:    strings.TrimSpace(in.Photographer),
		PhotographerURL: strings.TrimSpace(in.PhotographerURL),
		Description:     strings.TrimSpace(in.Description),
	}, nil
}
