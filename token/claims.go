package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims are the fields of an access token the client cares about.
// The client never holds the signing key, so claims are informational only.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	TokenID   string    `json:"jti,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// Expired reports whether the token had expired at now. A token without an
// exp claim never expires.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Inspect decodes an access token without verifying its signature.
func Inspect(rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Claims{}, errors.New("empty token")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, errors.New("unexpected claims type")
	}

	var claims Claims
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if jti, ok := mapClaims["jti"].(string); ok {
		claims.TokenID = jti
	}

	// SimpleJWT puts the user id in its own claim, usually as a number
	switch uid := mapClaims["user_id"].(type) {
	case string:
		claims.UserID = uid
	case float64:
		claims.UserID = fmt.Sprintf("%.0f", uid)
	}
	return claims, nil
}
