package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/safespace/safespace/internal/storage"
)

// ErrInvalidToken is returned for missing, malformed, or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated actor extracted from a bearer token.
type Identity struct {
	UserID string
	Role   string
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (t *TokenIssuer) Issue(u storage.User) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses a signed token and returns the actor identity.
func (t *TokenIssuer) Verify(signed string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(signed, &c, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: c.Subject, Role: c.Role}, nil
}
