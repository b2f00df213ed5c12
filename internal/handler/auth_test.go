package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pixvault/internal/auth"
	"github.com/sakif/pixvault/internal/handler"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository/sqlite"
	"github.com/sakif/pixvault/internal/service"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testFrontend = "http://localhost:3000"
)

// fakeProvider stands in for an OAuth issuer. Exchange hands back profiles
// keyed by authorization code.
type fakeProvider struct {
	profiles map[string]*auth.Profile
}

func (p *fakeProvider) Name() model.Provider { return model.ProviderGitHub }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*auth.Profile, error) {
	profile, ok := p.profiles[code]
	if !ok {
		return nil, errors.New("bad_verification_code")
	}
	return profile, nil
}

// fakeImages serves canned search results and download URLs.
type fakeImages struct {
	result   *model.SearchResult
	err      error
	searches []model.SearchQuery
	trackErr error
}

func (f *fakeImages) Search(ctx context.Context, q model.SearchQuery) (*model.SearchResult, error) {
	f.searches = append(f.searches, q)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Term = q.Term
	return &res, nil
}

func (f *fakeImages) TrackDownload(ctx context.Context, imageID string) (string, error) {
	if f.trackErr != nil {
		return "", f.trackErr
	}
	return "https://images.test/" + imageID + "/download", nil
}

type testEnv struct {
	db       *sqlite.DB
	router   chi.Router
	provider *fakeProvider
	images   *fakeImages
}

// newTestEnv wires the real services over an in-memory database, with the
// OAuth issuer and image API faked.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db: db,
		provider: &fakeProvider{profiles: map[string]*auth.Profile{
			"ada-code": {Provider: model.ProviderGitHub, ExternalID: "1001", DisplayName: "Ada", Email: "ada@example.com"},
			"bob-code": {Provider: model.ProviderGitHub, ExternalID: "1002", DisplayName: "Bob"},
		}},
		images: &fakeImages{result: &model.SearchResult{Total: 0, Images: []model.Image{}}},
	}

	state, err := auth.NewStateSigner(testSecret)
	require.NoError(t, err)
	sessions := auth.NewSessionManager(auth.NewSessionStore(db, testSecret, false))
	gate := auth.NewGate(sessions, db, logger)

	authHandler := handler.NewAuthHandler(handler.AuthConfig{
		Providers:   []auth.Provider{env.provider},
		State:       state,
		Sessions:    sessions,
		Gate:        gate,
		Users:       service.NewAuthService(db, logger),
		FrontendURL: testFrontend,
	}, logger)
	searchHandler := handler.NewSearchHandler(service.NewSearchService(env.images, db, db, db, logger), logger)
	favoriteHandler := handler.NewFavoriteHandler(service.NewFavoriteService(db, db, logger), logger)
	collectionHandler := handler.NewCollectionHandler(service.NewCollectionService(db, logger), logger)
	downloadHandler := handler.NewDownloadHandler(service.NewDownloadService(env.images, db, db, logger), logger)
	userHandler := handler.NewUserHandler(service.NewUserService(db, db, db, db, db, logger), logger)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Get("/current-user", authHandler.HandleCurrentUser)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/{provider}", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(gate.RequireAuth)
		r.Post("/search", searchHandler.HandleSearch)
		r.Get("/search/suggestions", searchHandler.HandleSuggestions)
		r.Get("/history", searchHandler.HandleHistory)
		r.Get("/top-searches", searchHandler.HandleTopSearches)
		r.Get("/favorites", favoriteHandler.HandleList)
		r.Post("/favorites", favoriteHandler.HandleCreate)
		r.Get("/favorites/{imageId}/status", favoriteHandler.HandleStatus)
		r.Delete("/favorites/{id}", favoriteHandler.HandleDelete)
		r.Get("/collections", collectionHandler.HandleList)
		r.Post("/collections", collectionHandler.HandleCreate)
		r.Get("/collections/{id}", collectionHandler.HandleGet)
		r.Put("/collections/{id}", collectionHandler.HandleUpdate)
		r.Delete("/collections/{id}", collectionHandler.HandleDelete)
		r.Post("/collections/{id}/images", collectionHandler.HandleAddImage)
		r.Delete("/collections/{id}/images/{imageId}", collectionHandler.HandleRemoveImage)
		r.Get("/downloads", downloadHandler.HandleList)
		r.Post("/downloads", downloadHandler.HandleCreate)
		r.Delete("/downloads/{id}", downloadHandler.HandleDelete)
		r.Get("/user/profile", userHandler.HandleProfile)
		r.Put("/user/profile", userHandler.HandleUpdateProfile)
		r.Get("/user/dashboard", userHandler.HandleDashboard)
	})
	env.router = r
	return env
}

func (env *testEnv) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// startLogin runs GET /auth/github and returns the state and its cookie.
func (env *testEnv) startLogin(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	rec := env.do(http.MethodGet, "/auth/github", "")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	cookie := findCookie(rec, auth.StateCookieName)
	require.NotNil(t, cookie)
	return loc.Query().Get("state"), cookie
}

// login completes the OAuth flow for code and returns the session cookie.
func (env *testEnv) login(t *testing.T, code string) *http.Cookie {
	t.Helper()
	state, stateCookie := env.startLogin(t)

	rec := env.do(http.MethodGet, "/auth/github/callback?code="+code+"&state="+url.QueryEscape(state), "", stateCookie)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, testFrontend, rec.Header().Get("Location"))

	session := findCookie(rec, auth.SessionCookieName)
	require.NotNil(t, session)
	return session
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

type currentUserBody struct {
	User *model.PublicUser `json:"user"`
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("redirects with a state cookie", func(t *testing.T) {
		env := newTestEnv(t)
		state, cookie := env.startLogin(t)

		assert.NotEmpty(t, state)
		assert.Equal(t, state, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, "/auth", cookie.Path)
	})

	t.Run("unknown provider is 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(http.MethodGet, "/auth/myspace", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("provider without credentials is 404", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(http.MethodGet, "/auth/google", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAuthHandler_Callback(t *testing.T) {
	t.Run("success creates the user and a session", func(t *testing.T) {
		env := newTestEnv(t)
		session := env.login(t, "ada-code")

		rec := env.do(http.MethodGet, "/auth/current-user", "", session)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[currentUserBody](t, rec)
		require.NotNil(t, body.User)
		assert.Equal(t, "Ada", body.User.DisplayName)
		assert.Equal(t, "ada@example.com", body.User.Email)
	})

	t.Run("returning user keeps the same record", func(t *testing.T) {
		env := newTestEnv(t)

		first := decode[currentUserBody](t, env.do(http.MethodGet, "/auth/current-user", "", env.login(t, "ada-code")))
		second := decode[currentUserBody](t, env.do(http.MethodGet, "/auth/current-user", "", env.login(t, "ada-code")))
		assert.Equal(t, first.User.ID, second.User.ID)
	})

	t.Run("state mismatch redirects to login", func(t *testing.T) {
		env := newTestEnv(t)
		_, stateCookie := env.startLogin(t)
		otherState, _ := env.startLogin(t)

		rec := env.do(http.MethodGet, "/auth/github/callback?code=ada-code&state="+url.QueryEscape(otherState), "", stateCookie)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, testFrontend+"/login", rec.Header().Get("Location"))
		assert.Nil(t, findCookie(rec, auth.SessionCookieName))
	})

	t.Run("missing state cookie redirects to login", func(t *testing.T) {
		env := newTestEnv(t)
		state, _ := env.startLogin(t)

		rec := env.do(http.MethodGet, "/auth/github/callback?code=ada-code&state="+url.QueryEscape(state), "")

		assert.Equal(t, testFrontend+"/login", rec.Header().Get("Location"))
		assert.Nil(t, findCookie(rec, auth.SessionCookieName))
	})

	t.Run("denied consent redirects to login", func(t *testing.T) {
		env := newTestEnv(t)
		state, stateCookie := env.startLogin(t)

		rec := env.do(http.MethodGet, "/auth/github/callback?error=access_denied&state="+url.QueryEscape(state), "", stateCookie)

		assert.Equal(t, testFrontend+"/login", rec.Header().Get("Location"))
		assert.Nil(t, findCookie(rec, auth.SessionCookieName))
	})

	t.Run("failed exchange redirects to login", func(t *testing.T) {
		env := newTestEnv(t)
		state, stateCookie := env.startLogin(t)

		rec := env.do(http.MethodGet, "/auth/github/callback?code=expired&state="+url.QueryEscape(state), "", stateCookie)

		assert.Equal(t, testFrontend+"/login", rec.Header().Get("Location"))
		assert.Nil(t, findCookie(rec, auth.SessionCookieName))
	})
}

func TestAuthHandler_CurrentUserWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/auth/current-user", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}

func TestAuthHandler_Logout(t *testing.T) {
	env := newTestEnv(t)
	session := env.login(t, "ada-code")

	rec := env.do(http.MethodPost, "/auth/logout", "", session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rec.Body.String())

	cleared := findCookie(rec, auth.SessionCookieName)
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)

	// The old cookie no longer resolves: the row is gone.
	rec = env.do(http.MethodGet, "/auth/current-user", "", session)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(http.MethodGet, "/api/favorites", "", session)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGate_RejectsBeforeHandlers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/search", `{"term":"mountains"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"authentication required"}`, rec.Body.String())
	assert.Empty(t, env.images.searches)

	forged := &http.Cookie{Name: auth.SessionCookieName, Value: "not-a-real-cookie"}
	rec = env.do(http.MethodGet, "/api/user/profile", "", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
