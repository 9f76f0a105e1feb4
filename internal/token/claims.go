package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity fields carried inside an access token. The server
// is the signing authority; the client only reads the payload.
type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var ErrBadToken = errors.New("malformed token")

// DecodeClaims extracts the identity claims from an access token without
// verifying the signature. Callers that need a role must fall back to "user"
// when this fails.
func DecodeClaims(access string) (Claims, error) {
	if access == "" {
		return Claims{}, ErrBadToken
	}
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(access, &claims); err != nil {
		return Claims{}, ErrBadToken
	}
	return claims, nil
}

// Expired reports whether the access token's embedded expiry has passed.
// Tokens that cannot be decoded, or that carry no expiry, count as expired so
// that the caller re-authenticates instead of trusting them.
func Expired(access string) bool {
	claims, err := DecodeClaims(access)
	if err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return !time.Now().Before(claims.ExpiresAt.Time)
}
