// Package auth handles login: the OAuth providers, the signed state that
// ties a callback to the browser that started the flow, server-side
// sessions, and the middleware that gates the API.
//
// LOGIN FLOW:
//  1. GET /auth/{provider} signs a state token, drops it in a short-lived
//     cookie and redirects to the provider's consent page.
//  2. The provider redirects to /auth/{provider}/callback with code+state.
//  3. The state query parameter must equal the cookie and verify against
//     the secret for the same provider.
//  4. The code is exchanged for a profile, the profile is resolved to a
//     user, and a fresh session cookie is issued.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/sakif/pixvault/internal/model"
)

const (
	StateCookieName = "oauth_state"
	StateTTL        = 10 * time.Minute

	stateIssuer = "pixvault-oauth"
)

var ErrInvalidState = errors.New("auth: invalid oauth state")

// StateSigner issues and checks the OAuth state parameter. A state is an
// HS256 JWT naming the provider, with a random nonce as its id.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

func NewStateSigner(secret string) (*StateSigner, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: state secret must be at least 16 characters")
	}
	return &StateSigner{secret: []byte(secret), now: time.Now}, nil
}

type stateClaims struct {
	Provider model.Provider `json:"prv"`
	jwt.RegisteredClaims
}

// Sign returns a new state token for provider.
func (s *StateSigner) Sign(provider model.Provider) (string, error) {
	now := s.now()
	c := stateClaims{
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing state: %w", err)
	}
	return signed, nil
}

// Verify checks that state was signed by us, has not expired, and was
// issued for provider.
func (s *StateSigner) Verify(state string, provider model.Provider) error {
	token, err := jwt.ParseWithClaims(
		state,
		&stateClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	c, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid {
		return ErrInvalidState
	}
	if c.Provider != provider {
		return fmt.Errorf("%w: issued for %q", ErrInvalidState, c.Provider)
	}
	return nil
}
