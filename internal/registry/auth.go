package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2/clientcredentials"
)

// authHeaders produces the request headers for a registry's auth variant.
// Certificate auth presents credentials at the TLS layer and adds none.
func authHeaders(ctx context.Context, auth AuthConfig) (map[string]string, error) {
	switch auth.Kind {
	case AuthNone, AuthCertificate, "":
		return nil, nil

	case AuthToken:
		if auth.Token == "" {
			return nil, fmt.Errorf("%w: token auth configured without a token", ErrInvalidConfig)
		}
		return map[string]string{"Authorization": "Bearer " + auth.Token}, nil

	case AuthAPIKey:
		header := auth.HeaderName
		if header == "" {
			header = "X-API-Key"
		}
		return map[string]string{header: auth.APIKey}, nil

	case AuthOAuth2:
		cfg := clientcredentials.Config{
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			TokenURL:     auth.TokenURL,
			Scopes:       auth.Scopes,
		}
		token, err := cfg.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("oauth2 token exchange failed: %w", err)
		}
		return map[string]string{"Authorization": "Bearer " + token.AccessToken}, nil
	}

	return nil, fmt.Errorf("%w: unknown auth kind %q", ErrInvalidConfig, auth.Kind)
}

// TokenExpiry extracts the expiry claim from a bearer token without
// verifying its signature. Returns false for opaque (non-JWT) tokens or
// tokens without an exp claim.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpired reports whether a JWT bearer token is past its expiry.
// Opaque tokens are never considered expired.
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && now.After(exp)
}
