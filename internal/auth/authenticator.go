// Package auth admits or rejects inbound connections. A connection carries
// a signed token either in the httpOnly "token" cookie or as an explicit
// handshake credential; the embedded subject must resolve to a known user.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"chatline/pkg/interfaces"
	"chatline/pkg/types"
)

// CookieName is the httpOnly cookie checked first for the credential.
const CookieName = "token"

// credentialParam is the explicit handshake field, checked when the cookie
// is absent.
const credentialParam = "token"

// Claims is the token payload. UserID is the embedded subject; the
// registered Subject field is honored as a fallback.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Authenticator verifies admission credentials against the server secret
// and resolves the subject against the user repository.
type Authenticator struct {
	secret []byte
	users  interfaces.UserRepository
}

// New creates an authenticator. An empty secret is accepted here and
// reported as ErrServerMisconfigured at admission time, so a misdeployed
// instance rejects connections instead of crashing at startup.
func New(secret string, users interfaces.UserRepository) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users}
}

// Admit extracts and verifies the request credential and resolves the
// subject. On success it returns the identity to attach to the session.
// No presence state is touched here; that happens after admission.
func (a *Authenticator) Admit(ctx context.Context, r *http.Request) (*types.Identity, error) {
	credential := credentialFrom(r)
	if credential == "" {
		return nil, ErrNoCredential
	}

	claims, err := a.Verify(credential)
	if err != nil {
		return nil, err
	}

	user, err := a.users.FindByID(ctx, claims.subject())
	if err != nil {
		if errors.Is(err, interfaces.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}

	return &types.Identity{ID: user.ID, Name: user.Name, Role: user.Role}, nil
}

// Verify parses and validates a raw token string against the server
// secret.
func (a *Authenticator) Verify(credential string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, ErrServerMisconfigured
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredential
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredential
	}
	if claims.subject() == "" {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}

func (c *Claims) subject() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// credentialFrom extracts the bearer credential: cookie first, then the
// explicit handshake field. The first non-empty value wins.
func credentialFrom(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get(credentialParam)
}
