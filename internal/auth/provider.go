package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"

	"github.com/sakif/pixvault/internal/model"
)

// ExchangeTimeout bounds a whole code exchange: the token call plus the
// profile lookups that follow it.
const ExchangeTimeout = 10 * time.Second

// Profile is what a provider tells us about the person who just consented.
type Profile struct {
	Provider    model.Provider
	ExternalID  string
	DisplayName string
	Email       string
	Avatar      string
}

// Provider is one OAuth identity issuer. The set of implementations is
// closed: NewGoogle, NewFacebook and NewGitHub.
type Provider interface {
	Name() model.Provider
	// AuthURL returns the consent page URL carrying state.
	AuthURL(state string) string
	// Exchange trades an authorization code for the user's profile.
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// ProviderConfig holds the registered OAuth app credentials. Endpoint and
// the API URLs default to the provider's production values.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	Endpoint    oauth2.Endpoint
	UserInfoURL string
	// EmailsURL is only used by GitHub, whose /user omits private emails.
	EmailsURL string
}

// profileFetcher reads the profile with an authorized client.
type profileFetcher func(ctx context.Context, client *http.Client, cfg ProviderConfig) (*Profile, error)

type oauthProvider struct {
	name   model.Provider
	cfg    ProviderConfig
	oauth  *oauth2.Config
	fetch  profileFetcher
	client *http.Client
}

func newOAuthProvider(name model.Provider, cfg ProviderConfig, defaults ProviderConfig, scopes []string, fetch profileFetcher) *oauthProvider {
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaults.UserInfoURL
	}
	if cfg.EmailsURL == "" {
		cfg.EmailsURL = defaults.EmailsURL
	}
	return &oauthProvider{
		name: name,
		cfg:  cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint:     cfg.Endpoint,
		},
		fetch:  fetch,
		client: &http.Client{Timeout: ExchangeTimeout},
	}
}

// NewGoogle returns the Google provider (profile + email scopes).
func NewGoogle(cfg ProviderConfig) Provider {
	return newOAuthProvider(model.ProviderGoogle, cfg, ProviderConfig{
		Endpoint:    endpoints.Google,
		UserInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
	}, []string{"profile", "email"}, fetchGoogleProfile)
}

// NewFacebook returns the Facebook provider. Email may be empty when the
// user declines the email permission.
func NewFacebook(cfg ProviderConfig) Provider {
	return newOAuthProvider(model.ProviderFacebook, cfg, ProviderConfig{
		Endpoint:    endpoints.Facebook,
		UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)",
	}, []string{"email"}, fetchFacebookProfile)
}

// NewGitHub returns the GitHub provider.
func NewGitHub(cfg ProviderConfig) Provider {
	return newOAuthProvider(model.ProviderGitHub, cfg, ProviderConfig{
		Endpoint:    github.Endpoint,
		UserInfoURL: "https://api.github.com/user",
		EmailsURL:   "https://api.github.com/user/emails",
	}, []string{"read:user", "user:email"}, fetchGitHubProfile)
}

func (p *oauthProvider) Name() model.Provider { return p.name }

func (p *oauthProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *oauthProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if code == "" {
		return nil, errors.New("auth: missing authorization code")
	}

	ctx, cancel := context.WithTimeout(ctx, ExchangeTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s code: %w", p.name, err)
	}

	profile, err := p.fetch(ctx, p.oauth.Client(ctx, token), p.cfg)
	if err != nil {
		return nil, err
	}
	if profile.ExternalID == "" {
		return nil, fmt.Errorf("auth: %s returned a profile without an id", p.name)
	}
	profile.Provider = p.name
	return profile, nil
}

// getJSON GETs url with an authorized client and decodes the body into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth: decoding %s: %w", url, err)
	}
	return nil
}

func fetchGoogleProfile(ctx context.Context, client *http.Client, cfg ProviderConfig) (*Profile, error) {
	var u struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, cfg.UserInfoURL, &u); err != nil {
		return nil, err
	}
	return &Profile{
		ExternalID:  u.Sub,
		DisplayName: firstNonEmpty(u.Name, u.Email),
		Email:       u.Email,
		Avatar:      u.Picture,
	}, nil
}

func fetchFacebookProfile(ctx context.Context, client *http.Client, cfg ProviderConfig) (*Profile, error) {
	var u struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := getJSON(ctx, client, cfg.UserInfoURL, &u); err != nil {
		return nil, err
	}
	return &Profile{
		ExternalID:  u.ID,
		DisplayName: u.Name,
		Email:       u.Email,
		Avatar:      u.Picture.Data.URL,
	}, nil
}

func fetchGitHubProfile(ctx context.Context, client *http.Client, cfg ProviderConfig) (*Profile, error) {
	var u struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, cfg.UserInfoURL, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, errors.New("auth: GitHub returned an invalid user (ID = 0)")
	}

	email := u.Email
	if email == "" && cfg.EmailsURL != "" {
		// A hidden email is not fatal; the account just has none.
		email, _ = primaryGitHubEmail(ctx, client, cfg.EmailsURL)
	}

	return &Profile{
		ExternalID:  strconv.FormatInt(u.ID, 10),
		DisplayName: firstNonEmpty(u.Name, u.Login),
		Email:       email,
		Avatar:      u.AvatarURL,
	}, nil
}

func primaryGitHubEmail(ctx context.Context, client *http.Client, url string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, url, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
