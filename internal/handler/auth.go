package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/pixvault/internal/auth"
	"github.com/sakif/pixvault/internal/model"
)

// UserResolver maps a provider profile to a local user.
type UserResolver interface {
	Resolve(ctx context.Context, profile *auth.Profile) (*model.User, error)
}

// AuthHandler runs the OAuth login flow and the session endpoints.
//
//   - HandleLogin         GET /auth/{provider}
//   - HandleCallback      GET /auth/{provider}/callback
//   - HandleLogout        GET|POST /auth/logout
//   - HandleCurrentUser   GET /auth/current-user
type AuthHandler struct {
	providers   map[model.Provider]auth.Provider
	state       *auth.StateSigner
	sessions    *auth.SessionManager
	gate        *auth.Gate
	users       UserResolver
	frontendURL string
	secure      bool
	logger      *slog.Logger
}

// AuthConfig collects AuthHandler's collaborators.
type AuthConfig struct {
	Providers   []auth.Provider
	State       *auth.StateSigner
	Sessions    *auth.SessionManager
	Gate        *auth.Gate
	Users       UserResolver
	FrontendURL string
	// SecureCookies marks the state cookie Secure.
	SecureCookies bool
}

func NewAuthHandler(cfg AuthConfig, logger *slog.Logger) *AuthHandler {
	providers := make(map[model.Provider]auth.Provider, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers[p.Name()] = p
	}
	return &AuthHandler{
		providers:   providers,
		state:       cfg.State,
		sessions:    cfg.Sessions,
		gate:        cfg.Gate,
		users:       cfg.Users,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		secure:      cfg.SecureCookies,
		logger:      logger,
	}
}

// provider resolves the {provider} path segment. Unknown names and
// providers without credentials are both 404.
func (h *AuthHandler) provider(r *http.Request) (auth.Provider, bool) {
	name, ok := model.ParseProvider(chi.URLParam(r, "provider"))
	if !ok {
		return nil, false
	}
	p, ok := h.providers[name]
	return p, ok
}

func (h *AuthHandler) notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "unknown login provider"})
}

// HandleLogin redirects to the provider's consent page. The signed state
// also goes into a 10-minute HttpOnly cookie; the callback requires both
// to match.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		h.notFound(w)
		return
	}

	state, err := h.state.Sign(p.Name())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(auth.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.AuthURL(state), http.StatusFound)
}

// HandleCallback completes the login. Any failure on the provider side
// (denied consent, bad state, failed exchange) sends the browser back to
// the frontend login page with no session; a failure on our side is a 500.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		h.notFound(w)
		return
	}
	q := r.URL.Query()

	// The state cookie is single-use.
	stateCookie, cookieErr := r.Cookie(auth.StateCookieName)
	http.SetCookie(w, &http.Cookie{Name: auth.StateCookieName, Value: "", Path: "/auth", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: provider returned error",
			slog.String("provider", string(p.Name())),
			slog.String("error", errParam),
		)
		h.redirectToLogin(w, r)
		return
	}

	state := q.Get("state")
	if cookieErr != nil || state == "" || state != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", string(p.Name())))
		h.redirectToLogin(w, r)
		return
	}
	if err := h.state.Verify(state, p.Name()); err != nil {
		h.logger.Warn("auth callback: invalid state",
			slog.String("provider", string(p.Name())),
			slog.String("error", err.Error()),
		)
		h.redirectToLogin(w, r)
		return
	}

	profile, err := p.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.Warn("auth callback: exchange failed",
			slog.String("provider", string(p.Name())),
			slog.String("error", err.Error()),
		)
		h.redirectToLogin(w, r)
		return
	}

	user, err := h.users.Resolve(r.Context(), profile)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	if err := h.sessions.Issue(w, r, user.ID); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	h.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("provider", string(p.Name())),
	)
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

func (h *AuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusFound)
}

// HandleLogout destroys the session. Logging out without a session
// succeeds too.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		h.logger.Error("logout failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "logout failed"})
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

type currentUserResponse struct {
	User *model.PublicUser `json:"user"`
}

// HandleCurrentUser returns the logged-in user's public fields, or 401
// with {"user": null}.
func (h *AuthHandler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.gate.Authenticate(w, r)
	if errors.Is(err, auth.ErrNoSession) {
		writeJSON(w, http.StatusUnauthorized, currentUserResponse{})
		return
	}
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	pub := user.Public()
	writeJSON(w, http.StatusOK, currentUserResponse{User: &pub})
}
