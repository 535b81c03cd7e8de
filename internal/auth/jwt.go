// Package auth verifies externally issued HS256 access tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/grocerly/internal/errs"
)

var (
	// ErrExpired reports a well-formed token past its expiry.
	ErrExpired = fmt.Errorf("token has expired: %w", errs.ErrUnauthorized)
	// ErrNoSubject reports a valid token without a sub claim.
	ErrNoSubject = fmt.Errorf("missing subject claim: %w", errs.ErrUnauthorized)
)

// Claims is the subset of the provider's claims the services rely on.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Verifier checks HS256 tokens signed with a shared secret.
// The audience claim is not checked; the subject must be a UUID.
type Verifier struct {
	key    []byte
	leeway time.Duration
}

// NewVerifier constructs a Verifier with a 30s clock-skew leeway.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{key: secret, leeway: 30 * time.Second}
}

// Verify parses the token and returns the subject as a user ID.
func (v *Verifier) Verify(token string) (uuid.UUID, *Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.key, nil
	}, jwt.WithLeeway(v.leeway))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, nil, ErrExpired
		}
		return uuid.Nil, nil, fmt.Errorf("invalid token: %w", errs.ErrUnauthorized)
	}
	if !parsed.Valid {
		return uuid.Nil, nil, fmt.Errorf("invalid token: %w", errs.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return uuid.Nil, nil, ErrNoSubject
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, nil, fmt.Errorf("bad subject: %w", errs.ErrUnauthorized)
	}
	return id, &claims, nil
}

// Issue signs a token for sub valid for ttl. Used for local development tokens.
func Issue(secret []byte, sub uuid.UUID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  "authenticated",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	v := strings.TrimSpace(header)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, true
		}
	}
	return "", false
}
