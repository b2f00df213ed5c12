package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
)

// contextKey is unexported so no other package can read or shadow our
// context values.
type contextKey string

const userKey contextKey = "currentUser"

// UserLookup is the part of the user store the gate needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Gate turns a session cookie into a loaded user.
type Gate struct {
	sessions *SessionManager
	users    UserLookup
	logger   *slog.Logger
}

func NewGate(sessions *SessionManager, users UserLookup, logger *slog.Logger) *Gate {
	return &Gate{sessions: sessions, users: users, logger: logger}
}

// Authenticate resolves the request's session to its user. It returns
// ErrNoSession when the caller is not logged in, including when the
// session points at a user that no longer exists.
func (g *Gate) Authenticate(w http.ResponseWriter, r *http.Request) (*model.User, error) {
	userID, err := g.sessions.Resolve(w, r)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetUserByID(r.Context(), userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RequireAuth rejects requests without a valid session with 401 before any
// handler runs. On success the user is available via UserFromContext.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.Authenticate(w, r)
		if errors.Is(err, ErrNoSession) {
			writeUnauthorized(w)
			return
		}
		if err != nil {
			g.logger.Error("resolving session", slog.String("path", r.URL.Path), slog.Any("error", err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"internal_error","message":"an unexpected error occurred"}`))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"authentication required"}`))
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user set by RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}
