package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the credential-verification mode for the application.
type AuthMode string

const (
	// AuthModeOIDC verifies credentials against an OIDC identity provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses a static dev verifier (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, mock)", v)
	}
}

// OIDCConfig contains the identity-provider configuration used by the
// credential verifier (resource-owner password grant).
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"storefront"`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:""`
	IssuerURL    string `env:"ISSUER_URL"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
}

// DevAuthConfig controls the mock verifier identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID   int64  `env:"USER_ID"  envDefault:"1"`
	Email    string `env:"EMAIL"    envDefault:"dev@example.com"`
	Password string `env:"PASSWORD" envDefault:"dev"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which credential verifier to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}
