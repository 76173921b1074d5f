// Package auth implements the stateless session credentials: signed
// time-limited tokens bound to a user identity, and adaptive password hashing.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid is returned for every verification failure. Tampering,
// malformed input and expiry are deliberately not distinguished to the caller.
var ErrTokenInvalid = errors.New("invalid token")

// Claims is the payload of a session token. Subject carries the user email.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256-signed session tokens. The signing
// key is loaded once at startup and shared read-only by all requests.
type TokenService struct {
	key      []byte
	lifetime time.Duration
}

func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	return &TokenService{key: []byte(secret), lifetime: lifetime}
}

// Issue produces a compact signed token for the given subject and roles,
// valid from now until now plus the configured lifetime.
func (s *TokenService) Issue(subject string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the signature and expiry of a token and returns its claims.
// Any failure yields ErrTokenInvalid.
func (s *TokenService) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Lifetime returns the configured validity window. Callers use it to keep the
// transport cookie's Max-Age in step with the token expiry.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}
