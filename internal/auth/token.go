// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Clark-Hu/movie-reviews/internal/access"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager returns a manager for the given secret.
func NewTokenManager(secret, issuer string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for user and returns it with its expiry.
func (m *TokenManager) Issue(user domain.User) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := &Claims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses token and returns the caller it identifies.
func (m *TokenManager) Verify(token string) (access.Caller, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return access.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return access.Caller{}, ErrInvalidToken
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return access.Caller{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return access.Caller{UserID: claims.Subject, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value. ok is
// false when the header is present but not a bearer credential.
func BearerToken(header string) (token string, present bool, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false, true
	}
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", true, false
	}
	token = strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", true, false
	}
	return token, true, true
}
