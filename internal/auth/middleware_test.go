package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
)

type fakeUsers map[string]*model.User

func (f fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func newTestGate(t *testing.T, users fakeUsers) (*Gate, *SessionManager) {
	t.Helper()
	m, _, _ := newTestSessions(t)
	return NewGate(m, users, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	w.Write([]byte(u.ID))
}

func TestRequireAuth_NoSession(t *testing.T) {
	g, _ := newTestGate(t, fakeUsers{})
	called := false
	h := g.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWith(nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"authentication required"}`, rec.Body.String())
}

func TestRequireAuth_ValidSession(t *testing.T) {
	users := fakeUsers{"user-1": {ID: "user-1", DisplayName: "Ada"}}
	g, m := newTestGate(t, users)
	c := issue(t, m, "user-1")

	rec := httptest.NewRecorder()
	g.RequireAuth(http.HandlerFunc(echoUser)).ServeHTTP(rec, requestWith(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestRequireAuth_UserGone(t *testing.T) {
	g, m := newTestGate(t, fakeUsers{})
	c := issue(t, m, "ghost")

	rec := httptest.NewRecorder()
	g.RequireAuth(http.HandlerFunc(echoUser)).ServeHTTP(rec, requestWith(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	u, ok := UserFromContext(WithUser(context.Background(), &model.User{ID: "x"}))
	require.True(t, ok)
	assert.Equal(t, "x", u.ID)
}
