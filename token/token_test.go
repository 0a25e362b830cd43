package token_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-campsite-client/token"
	tokenrepofake "github.com/jrsteele09/go-campsite-client/token/repofake"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()

	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestInspect_DecodesClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedToken(t, jwtlib.MapClaims{
		"user_id": 42,
		"jti":     "abc",
		"exp":     exp.Unix(),
	})

	claims, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "42", claims.UserID)
	require.Equal(t, "abc", claims.TokenID)
	require.True(t, claims.ExpiresAt.Equal(exp))
	require.False(t, claims.Expired(time.Now()))
	require.True(t, claims.Expired(exp.Add(time.Second)))
}

func TestInspect_RejectsGarbage(t *testing.T) {
	_, err := token.Inspect("")
	require.Error(t, err)

	_, err = token.Inspect("not-a-jwt")
	require.Error(t, err)
}

func TestPair_OAuth2Token(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	pair := token.Pair{Access: signedToken(t, jwtlib.MapClaims{"exp": exp.Unix()}), Refresh: "R1"}

	tok := pair.OAuth2Token()
	require.Equal(t, "Bearer", tok.Type())
	require.Equal(t, "R1", tok.RefreshToken)
	require.True(t, tok.Expiry.Equal(exp))

	opaque := token.Pair{Access: "opaque", Refresh: "R1"}.OAuth2Token()
	require.True(t, opaque.Expiry.IsZero())
	require.True(t, opaque.Valid(), "opaque tokens without expiry stay usable")
}

func TestPair_Valid(t *testing.T) {
	require.True(t, token.Pair{Access: "a", Refresh: "r"}.Valid())
	require.False(t, token.Pair{Access: "a"}.Valid())
	require.False(t, token.Pair{Refresh: "r"}.Valid())
}

func TestMemoryStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := tokenrepofake.NewMemoryStoreWith(token.Pair{Access: "T1", Refresh: "R1"})

	store.Clear(ctx)
	_, ok := store.Read(ctx)
	require.False(t, ok)

	store.Clear(ctx)
	_, ok = store.Read(ctx)
	require.False(t, ok)
	require.Equal(t, 2, store.Clears())
}

func TestMemoryStore_SetAccess(t *testing.T) {
	ctx := context.Background()
	store := tokenrepofake.NewMemoryStore()

	store.SetAccess(ctx, "T0")
	_, ok := store.Read(ctx)
	require.False(t, ok)

	store.Save(ctx, token.Pair{Access: "T1", Refresh: "R1"})
	store.SetAccess(ctx, "T2")

	pair, ok := store.Read(ctx)
	require.True(t, ok)
	require.Equal(t, token.Pair{Access: "T2", Refresh: "R1"}, pair)
}
