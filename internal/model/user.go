// Package model defines the data structures used throughout the application.
package model

import "time"

// Provider names a supported OAuth identity issuer. The set is closed: the
// constants below are the only values the rest of the code accepts.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderGitHub   Provider = "github"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderGoogle, ProviderFacebook, ProviderGitHub}

// ParseProvider maps a URL segment such as "github" to a Provider.
func ParseProvider(s string) (Provider, bool) {
	for _, p := range Providers {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Theme is the UI theme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeAuto:
		return true
	}
	return false
}

type Preferences struct {
	Theme Theme `json:"theme"`
}

// UserStats are denormalized activity counters. They are maintained with
// atomic increments next to the activity write and may drift if the second
// write fails.
type UserStats struct {
	TotalSearches  int64 `json:"totalSearches"`
	TotalDownloads int64 `json:"totalDownloads"`
	FavoriteCount  int64 `json:"favoriteCount"`
}

// Stat names one of the UserStats counters.
type Stat string

const (
	StatSearches  Stat = "total_searches"
	StatDownloads Stat = "total_downloads"
	StatFavorites Stat = "favorite_count"
)

// User is an identity record. Exactly the provider ids the user has logged in
// with are set; logging in through a second provider creates a second User.
type User struct {
	ID          string      `json:"id"`
	GoogleID    string      `json:"googleId,omitempty"`
	FacebookID  string      `json:"facebookId,omitempty"`
	GitHubID    string      `json:"githubId,omitempty"`
	DisplayName string      `json:"displayName"`
	Email       string      `json:"email,omitempty"`
	Avatar      string      `json:"avatar,omitempty"`
	Bio         string      `json:"bio"`
	Preferences Preferences `json:"preferences"`
	Stats       UserStats   `json:"stats"`
	CreatedAt   time.Time   `json:"createdAt"`
	LastActive  time.Time   `json:"lastActive"`
}

// ProviderID returns the external id stored for p, or "".
func (u *User) ProviderID(p Provider) string {
	switch p {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderFacebook:
		return u.FacebookID
	case ProviderGitHub:
		return u.GitHubID
	}
	return ""
}

// SetProviderID stores id in the field belonging to p.
func (u *User) SetProviderID(p Provider, id string) {
	switch p {
	case ProviderGoogle:
		u.GoogleID = id
	case ProviderFacebook:
		u.FacebookID = id
	case ProviderGitHub:
		u.GitHubID = id
	}
}

// HasIdentity reports whether at least one provider id is set.
func (u *User) HasIdentity() bool {
	return u.GoogleID != "" || u.FacebookID != "" || u.GitHubID != ""
}

// PublicUser is the slim shape returned by /auth/current-user.
type PublicUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Avatar:      u.Avatar,
	}
}

// Session is the server-side half of a login. IDHash is the digest of the
// credential carried in the cookie; the raw credential is never stored.
type Session struct {
	IDHash    string
	UserID    string
	CreatedAt time.Time
	TouchedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
