package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenStore persists the refresh token between runs.
type TokenStore interface {
	// Load returns the stored token or [shared.ErrNoRefreshToken].
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// newAccessToken wraps a raw access token, reading its expiry when it is a JWT.
//
// The signature is not checked; the client only needs the expiry and the server validates the token.
func newAccessToken(raw string) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if exp, ok := tokenExpiry(raw); ok {
		tok.Expiry = exp
	}
	return tok
}

func tokenExpiry(raw string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
