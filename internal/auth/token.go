// Package auth issues and verifies the bearer tokens handed out at signup and login.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim stamped on every token.
const Issuer = "inkwell-api"

// DefaultTTL is the lifetime of a token when none is configured.
const DefaultTTL = time.Hour

var (
	ErrMissingToken = errors.New("token is required")
	ErrInvalidToken = errors.New("token is invalid")
)

// Claims carries the registered claims only; the subject holds the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer using secret. A non-positive ttl falls back to DefaultTTL.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for iat/exp and for validation.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

// TTL returns the configured token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for userID.
func (i *TokenIssuer) Issue(userID uint) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns the user ID in its subject.
// An empty string yields ErrMissingToken; any other failure wraps ErrInvalidToken.
func (i *TokenIssuer) Verify(tokenString string) (uint, error) {
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	return uint(userID), nil
}
