package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/auth"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

// AuthService bridges an OAuth profile to a local user record.
type AuthService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, logger: logger}
}

// Resolve returns the user owning profile's provider id, creating one on
// first login. An existing record is returned as stored; profile changes
// at the provider are not copied over.
//
// Two first logins racing for the same provider id both miss the lookup;
// the loser's insert hits the unique index and it returns the winner's
// record instead.
//
// Identities are never merged across providers: the same person logging in
// with Google and then GitHub gets two users.
func (s *AuthService) Resolve(ctx context.Context, profile *auth.Profile) (*model.User, error) {
	if profile == nil || profile.ExternalID == "" {
		return nil, apperror.ValidationFailed("profile", "provider profile has no id")
	}
	if _, ok := model.ParseProvider(string(profile.Provider)); !ok {
		return nil, apperror.ValidationFailed("provider", fmt.Sprintf("unsupported provider %q", profile.Provider))
	}

	user, err := s.users.FindByProvider(ctx, profile.Provider, profile.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: finding %s user: %w", profile.Provider, err)
	}

	user = &model.User{
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		Avatar:      profile.Avatar,
		Preferences: model.Preferences{Theme: model.ThemeLight},
	}
	if user.DisplayName == "" {
		user.DisplayName = string(profile.Provider) + " user"
	}
	user.SetProviderID(profile.Provider, profile.ExternalID)

	err = s.users.Create(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		winner, findErr := s.users.FindByProvider(ctx, profile.Provider, profile.ExternalID)
		if findErr != nil {
			return nil, fmt.Errorf("service/auth: re-reading %s user after conflict: %w", profile.Provider, findErr)
		}
		return winner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating %s user: %w", profile.Provider, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("provider", string(profile.Provider)),
	)
	return user, nil
}
