// Package config loads server configuration from the environment, with an
// optional .env file filling in anything the environment leaves unset.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/pixvault/internal/model"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	MinSessionSecretLength = 32
)

// OAuthCredentials are one provider's registered app credentials.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
}

func (c OAuthCredentials) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Config struct {
	Port int
	Env  string
	// ServerURL is the public base URL OAuth callbacks are built from.
	ServerURL   string
	FrontendURL string

	SessionSecret string
	DBPath        string
	LogLevel      slog.Level

	UnsplashAccessKey string
	UnsplashAPIURL    string
	UnsplashTimeout   time.Duration

	Google   OAuthCredentials
	Facebook OAuthCredentials
	GitHub   OAuthCredentials
}

// Load reads the configuration. Each env file is loaded first without
// overriding variables already set; with no files given, ./.env is used if
// it exists. Every validation problem is reported in one error.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	var errs []error

	port, err := getEnvAsInt("PORT", 5000)
	if err != nil {
		errs = append(errs, err)
	}
	timeout, err := getEnvAsDuration("UNSPLASH_TIMEOUT", 10*time.Second)
	if err != nil {
		errs = append(errs, err)
	}

	env := strings.ToLower(getEnv("ENV", EnvDevelopment))
	defaultLevel := "info"
	if env == EnvDevelopment {
		defaultLevel = "debug"
	}
	level, err := parseLevel(getEnv("LOG_LEVEL", defaultLevel))
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		Port:              port,
		Env:               env,
		ServerURL:         strings.TrimRight(getEnv("SERVER_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		FrontendURL:       strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		DBPath:            getEnv("DB_PATH", "data/app.db"),
		LogLevel:          level,
		UnsplashAccessKey: os.Getenv("UNSPLASH_ACCESS_KEY"),
		UnsplashAPIURL:    getEnv("UNSPLASH_API_URL", "https://api.unsplash.com"),
		UnsplashTimeout:   timeout,
		Google: OAuthCredentials{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		Facebook: OAuthCredentials{
			ClientID:     os.Getenv("FACEBOOK_APP_ID"),
			ClientSecret: os.Getenv("FACEBOOK_APP_SECRET"),
		},
		GitHub: OAuthCredentials{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		},
	}

	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.Env))
	}
	if len(cfg.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET is required and must be at least %d characters", MinSessionSecretLength))
	}
	if cfg.UnsplashAccessKey == "" {
		errs = append(errs, errors.New("UNSPLASH_ACCESS_KEY is required"))
	}
	if len(cfg.EnabledProviders()) == 0 {
		errs = append(errs, errors.New("at least one OAuth provider must be configured (GOOGLE_CLIENT_ID/SECRET, FACEBOOK_APP_ID/SECRET or GITHUB_CLIENT_ID/SECRET)"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Credentials returns the credentials configured for p.
func (c *Config) Credentials(p model.Provider) OAuthCredentials {
	switch p {
	case model.ProviderGoogle:
		return c.Google
	case model.ProviderFacebook:
		return c.Facebook
	case model.ProviderGitHub:
		return c.GitHub
	}
	return OAuthCredentials{}
}

// EnabledProviders lists the providers with both id and secret set.
func (c *Config) EnabledProviders() []model.Provider {
	var out []model.Provider
	for _, p := range model.Providers {
		if c.Credentials(p).Enabled() {
			out = append(out, p)
		}
	}
	return out
}

// CallbackURL is the redirect URI registered with provider p.
func (c *Config) CallbackURL(p model.Provider) string {
	return c.ServerURL + "/auth/" + string(p) + "/callback"
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: reading .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("config: reading env files: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return v, nil
}

// getEnvAsDuration accepts Go durations ("10s") or plain milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}
