package registry

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// RegistryType categorizes a configured registry.
type RegistryType string

const (
	TypeOfficial   RegistryType = "official"
	TypeCommunity  RegistryType = "community"
	TypeEnterprise RegistryType = "enterprise"
	TypePrivate    RegistryType = "private"
)

// AuthKind selects how requests to a registry authenticate.
type AuthKind string

const (
	AuthNone        AuthKind = "none"
	AuthToken       AuthKind = "token"
	AuthAPIKey      AuthKind = "apikey"
	AuthOAuth2      AuthKind = "oauth2"
	AuthCertificate AuthKind = "certificate"
)

// AuthConfig is the credential variant for one registry. Only the fields
// for the selected Kind are meaningful.
type AuthConfig struct {
	Kind AuthKind `json:"kind"`

	// token
	Token string `json:"token,omitempty"`

	// apikey
	APIKey     string `json:"api_key,omitempty"`
	HeaderName string `json:"header_name,omitempty"`

	// oauth2 client credentials
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	TokenURL     string   `json:"token_url,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`

	// certificate (mutual TLS, presented at the transport edge)
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
}

// Config describes one configured registry.
type Config struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	URL        string        `json:"url"`
	Type       RegistryType  `json:"type"`
	Priority   int           `json:"priority"`
	Enabled    bool          `json:"enabled"`
	Auth       AuthConfig    `json:"auth"`
	Timeout    time.Duration `json:"timeout"`
	RetryCount int           `json:"retry_count"`

	// Seq records insertion order; it breaks priority ties in search.
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// idRegex matches valid registry id slugs.
var idRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-_]*$`)

// Validate checks the config for structural problems.
func (c *Config) Validate() error {
	if !idRegex.MatchString(c.ID) {
		return fmt.Errorf("%w: id %q must be a lowercase slug", ErrInvalidConfig, c.ID)
	}

	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}

	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: url %q must be absolute", ErrInvalidConfig, c.URL)
	}

	switch c.Type {
	case TypeOfficial, TypeCommunity, TypeEnterprise, TypePrivate:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidConfig, c.Type)
	}

	switch c.Auth.Kind {
	case AuthNone, AuthToken, AuthAPIKey, AuthOAuth2, AuthCertificate:
	case "":
		// Treated as none.
	default:
		return fmt.Errorf("%w: unknown auth kind %q", ErrInvalidConfig, c.Auth.Kind)
	}

	if c.Auth.Kind == AuthOAuth2 && (c.Auth.ClientID == "" || c.Auth.TokenURL == "") {
		return fmt.Errorf("%w: oauth2 auth requires client_id and token_url", ErrInvalidConfig)
	}

	if c.Priority < 0 {
		return fmt.Errorf("%w: priority cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// HealthStatus is the probe classification for a registry.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnreachable HealthStatus = "unreachable"
	HealthUnknown     HealthStatus = "unknown"
)
