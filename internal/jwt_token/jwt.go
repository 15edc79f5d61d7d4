// Package jwttoken verifies the HS256 bearer tokens the traveler app obtains
// from the identity provider. Tokens name the traveler in user_id or, failing
// that, in sub.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// Claims of an access token.
type Claims struct {
	User string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the traveler the token was issued for.
func (c *Claims) UserID() (id.UserID, error) {
	raw := c.User
	if raw == "" {
		raw = c.Subject
	}
	return id.ParseUserID(raw)
}

// Verifier checks signature, expiry and, when configured, issuer.
type Verifier struct {
	signingKey []byte
	issuer     string
	leeway     time.Duration
	now        func() time.Time
}

type Option func(*Verifier)

// WithIssuer rejects tokens whose iss differs from issuer.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) { v.issuer = issuer }
}

// WithLeeway tolerates clock skew between the identity provider and us.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) { v.leeway = d }
}

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(signingKey string, opts ...Option) *Verifier {
	v := &Verifier{
		signingKey: []byte(signingKey),
		leeway:     30 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issue signs a token for userID. The server never issues tokens itself; this
// exists for tests and local tooling.
func (v *Verifier) Issue(userID id.UserID, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		User: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// Verify parses tokenString and returns its claims. Every failure is
// CodeUnauthorized; an expired token says so.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, parserOpts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
