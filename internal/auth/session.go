package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/blake2b"

	"github.com/sakif/pixvault/internal/apperror"
	"github.com/sakif/pixvault/internal/model"
	"github.com/sakif/pixvault/internal/repository"
)

const (
	SessionCookieName = "pixvault_session"
	SessionTTL        = 7 * 24 * time.Hour
	// TouchAfter is how stale a session's last write may get before a
	// request slides its expiry forward.
	TouchAfter = 24 * time.Hour
)

// ErrNoSession means the request carries no usable session: no cookie, a
// cookie we cannot decode, an unknown id, or an expired one.
var ErrNoSession = errors.New("auth: no valid session")

const (
	valueUserID    = "userID"
	valueTouchedAt = "touchedAt"
)

// HashSessionID is the digest stored in place of the raw session id.
func HashSessionID(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// SessionStore is a sessions.Store that keeps session state in the
// database. The cookie only carries the signed, encrypted session id.
type SessionStore struct {
	repo    repository.SessionRepository
	codecs  []securecookie.Codec
	Options *sessions.Options
	ttl     time.Duration
	now     func() time.Time
}

var _ sessions.Store = (*SessionStore)(nil)

// NewSessionStore derives the cookie signing and encryption keys from
// secret. secure marks cookies Secure with SameSite=None for a frontend on
// another origin; otherwise SameSite=Lax.
func NewSessionStore(repo repository.SessionRepository, secret string, secure bool) *SessionStore {
	hashKey := blake2b.Sum512([]byte("session-hash:" + secret))
	blockKey := blake2b.Sum256([]byte("session-block:" + secret))

	codecs := securecookie.CodecsFromPairs(hashKey[:], blockKey[:])
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(SessionTTL.Seconds()))
		}
	}

	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		opts.Secure = true
		opts.SameSite = http.SameSiteNoneMode
	}

	return &SessionStore{
		repo:    repo,
		codecs:  codecs,
		Options: opts,
		ttl:     SessionTTL,
		now:     time.Now,
	}
}

// Get returns the session cached for this request, loading it on first use.
func (s *SessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie. A missing or invalid
// cookie yields a new, empty session and no error; only storage failures
// are returned.
func (s *SessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.codecs...); err != nil {
		return session, nil
	}

	row, err := s.repo.GetSession(r.Context(), HashSessionID(id))
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return session, nil
	case err != nil:
		return session, err
	}

	if row.Expired(s.now()) {
		if err := s.repo.DeleteSession(r.Context(), row.IDHash); err != nil {
			return session, err
		}
		return session, nil
	}

	session.ID = id
	session.IsNew = false
	session.Values[valueUserID] = row.UserID
	session.Values[valueTouchedAt] = row.TouchedAt
	return session, nil
}

// Save persists the session and writes its cookie. A negative MaxAge
// deletes the row and expires the cookie. Saving a loaded session slides
// its expiry; ErrNoSession means the row vanished in the meantime.
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.repo.DeleteSession(r.Context(), HashSessionID(session.ID)); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	userID, _ := session.Values[valueUserID].(string)
	if userID == "" {
		return errors.New("auth: refusing to save a session without a user")
	}

	now := s.now().UTC()
	if session.ID != "" && !session.IsNew {
		err := s.repo.TouchSession(r.Context(), HashSessionID(session.ID), now, now.Add(s.ttl))
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrNoSession
		}
		if err != nil {
			return err
		}
	} else {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		err := s.repo.SaveSession(r.Context(), &model.Session{
			IDHash:    HashSessionID(session.ID),
			UserID:    userID,
			CreatedAt: now,
			TouchedAt: now,
			ExpiresAt: now.Add(s.ttl),
		})
		if err != nil {
			return err
		}
	}
	session.Values[valueTouchedAt] = now

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("auth: encoding session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Purge deletes expired sessions and reports how many were removed.
func (s *SessionStore) Purge(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredSessions(ctx, s.now())
}

// SessionManager is the login-facing API over SessionStore.
type SessionManager struct {
	store *SessionStore
	name  string
}

func NewSessionManager(store *SessionStore) *SessionManager {
	return &SessionManager{store: store, name: SessionCookieName}
}

// Issue starts a new session for userID. Any session the request already
// carries is destroyed first, so a login always rotates the id.
func (m *SessionManager) Issue(w http.ResponseWriter, r *http.Request, userID string) error {
	old, err := m.store.New(r, m.name)
	if err != nil {
		return err
	}
	if !old.IsNew {
		if err := m.store.repo.DeleteSession(r.Context(), HashSessionID(old.ID)); err != nil {
			return err
		}
	}

	session := sessions.NewSession(m.store, m.name)
	opts := *m.store.Options
	session.Options = &opts
	session.IsNew = true
	session.Values[valueUserID] = userID
	return m.store.Save(r, w, session)
}

// Resolve returns the user id behind the request's session, or
// ErrNoSession. A session last written TouchAfter or longer ago has its
// expiry extended and its cookie reissued.
func (m *SessionManager) Resolve(w http.ResponseWriter, r *http.Request) (string, error) {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return "", err
	}
	if session.IsNew {
		return "", ErrNoSession
	}

	userID, _ := session.Values[valueUserID].(string)
	if userID == "" {
		return "", ErrNoSession
	}

	touchedAt, _ := session.Values[valueTouchedAt].(time.Time)
	if m.store.now().Sub(touchedAt) >= TouchAfter {
		if err := m.store.Save(r, w, session); err != nil {
			return "", err
		}
	}
	return userID, nil
}

// Destroy deletes the request's session, if any, and clears the cookie.
func (m *SessionManager) Destroy(w http.ResponseWriter, r *http.Request) error {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return err
	}
	session.Options.MaxAge = -1
	return m.store.Save(r, w, session)
}
