package token

import (
	"context"

	"golang.org/x/oauth2"
)

// Pair is the credential pair issued by the backend on login, registration
// and (for the access half) refresh.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Valid reports whether both halves of the pair are present.
func (p Pair) Valid() bool {
	return p.Access != "" && p.Refresh != ""
}

// OAuth2Token converts the pair into an oauth2 bearer token. The expiry is
// taken from the access token's exp claim when it can be decoded.
func (p Pair) OAuth2Token() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  p.Access,
		RefreshToken: p.Refresh,
		TokenType:    "Bearer",
	}
	if claims, err := Inspect(p.Access); err == nil {
		t.Expiry = claims.ExpiresAt
	}
	return t
}

// Store persists the credential pair across restarts.
//
// Implementations never return errors: storage failures are logged and
// degrade to "no credentials".
type Store interface {
	// Save writes both tokens; a reader never observes only one of them.
	Save(ctx context.Context, pair Pair)
	// Read returns the stored pair, or false when none is stored.
	Read(ctx context.Context) (Pair, bool)
	// SetAccess replaces the access token of the stored pair, keeping the
	// refresh token. It does nothing when no pair is stored.
	SetAccess(ctx context.Context, access string)
	// Clear removes both tokens. Clearing an empty store is a no-op.
	Clear(ctx context.Context)
}
