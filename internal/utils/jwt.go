// Package utils provides token helpers shared by the auth middleware and the
// development token tool.
package utils

import (
	"errors"
	"fmt"
	"time" // issue and expiry timestamps

	"github.com/golang-jwt/jwt/v5" // JWT signing and parsing
)

// Claims are the access token claims.  Subject carries the user id.
type Claims struct {
	Role string `json:"role,omitempty"` // matched by middleware.RequireRole
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 token for userID valid for ttl.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
	if userID == "" {
		return AccessToken{}, errors.New("empty subject")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl) // returned so callers can report it
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	// Sign with the shared HMAC secret.
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw and returns its claims.  Only HS256 is
// accepted and the subject must be present.
func ParseAccessToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	// Only HS256 is accepted and exp is mandatory.
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil // same key that signed it
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	// Every request must map to a user.
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}
