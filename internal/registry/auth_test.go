package registry

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ci-bot",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestAuthHeaders(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		headers, err := authHeaders(ctx, AuthConfig{Kind: AuthNone})
		require.NoError(t, err)
		require.Empty(t, headers)
	})

	t.Run("token", func(t *testing.T) {
		headers, err := authHeaders(ctx, AuthConfig{Kind: AuthToken, Token: "abc123"})
		require.NoError(t, err)
		require.Equal(t, "Bearer abc123", headers["Authorization"])
	})

	t.Run("token without value", func(t *testing.T) {
		_, err := authHeaders(ctx, AuthConfig{Kind: AuthToken})
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("apikey default header", func(t *testing.T) {
		headers, err := authHeaders(ctx, AuthConfig{Kind: AuthAPIKey, APIKey: "k-1"})
		require.NoError(t, err)
		require.Equal(t, "k-1", headers["X-API-Key"])
	})

	t.Run("apikey custom header", func(t *testing.T) {
		headers, err := authHeaders(ctx, AuthConfig{Kind: AuthAPIKey, APIKey: "k-1", HeaderName: "X-Registry-Key"})
		require.NoError(t, err)
		require.Equal(t, "k-1", headers["X-Registry-Key"])
	})

	t.Run("certificate adds no headers", func(t *testing.T) {
		headers, err := authHeaders(ctx, AuthConfig{Kind: AuthCertificate, CertFile: "client.pem"})
		require.NoError(t, err)
		require.Empty(t, headers)
	})
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	require.True(t, got.Equal(exp))

	_, ok = TokenExpiry("opaque-api-token")
	require.False(t, ok)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	require.False(t, TokenExpired(signedToken(t, now.Add(time.Hour)), now))
	require.True(t, TokenExpired(signedToken(t, now.Add(-time.Hour)), now))
	require.False(t, TokenExpired("opaque-api-token", now))
}
