package config

import (
	"errors"
	"fmt"
	"strings"
)

// AuthMode selects how POST /auth/sync verifies provider credentials.
type AuthMode string

const (
	// AuthModeBackend accepts email and password logins only; provider sync is off.
	AuthModeBackend AuthMode = "backend"
	// AuthModeOAuth verifies provider ID tokens against an OIDC issuer.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock accepts "dev:<email>[:<ROLE>]" credentials (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "backend", "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: backend, oauth, mock)", v)
	}
}

// MinTokenSecretLen is the shortest accepted HS256 signing secret.
const MinTokenSecretLen = 32

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// AuthURL, TokenURL and RevokeURL drive the client-side provider.
	AuthURL   string `env:"AUTH_URL"`
	TokenURL  string `env:"TOKEN_URL"`
	RevokeURL string `env:"REVOKE_URL"`
}

// Scopes splits Scope on whitespace.
func (o OAuthConfig) Scopes() []string { return strings.Fields(o.Scope) }

// DevAuthConfig controls mock authentication.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Email    string `env:"EMAIL"    envDefault:"dev@shop.test"`
	Password string `env:"PASSWORD" envDefault:"dev-password"`
	Role     string `env:"ROLE"     envDefault:"CUSTOMER"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"backend"`

	// TokenSecret signs session tokens (HS256).
	TokenSecret string `env:"AUTH_TOKEN_SECRET"`
	TokenIssuer string `env:"AUTH_TOKEN_ISSUER" envDefault:"marketgate"`

	// PasswordCost is the bcrypt cost for new password hashes.
	PasswordCost int `env:"AUTH_PASSWORD_COST" envDefault:"12"`

	// RoleExpression is a JMESPath expression over provider claims that yields a role name.
	RoleExpression string `env:"AUTH_ROLE_EXPRESSION"`
	// RoleRules is "expr=>ROLE;expr=>ROLE", evaluated in order after RoleExpression.
	RoleRules   string `env:"AUTH_ROLE_RULES"`
	DefaultRole string `env:"AUTH_DEFAULT_ROLE" envDefault:"CUSTOMER"`

	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims values and restores defaults.
func (a *AuthConfig) Sanitize() {
	if a.Mode == "" {
		a.Mode = AuthModeBackend
	}
	a.TokenIssuer = strings.TrimSpace(a.TokenIssuer)
	if a.TokenIssuer == "" {
		a.TokenIssuer = "marketgate"
	}
	a.RoleExpression = strings.TrimSpace(a.RoleExpression)
	a.DefaultRole = strings.ToUpper(strings.TrimSpace(a.DefaultRole))
	if a.PasswordCost < 4 || a.PasswordCost > 31 {
		a.PasswordCost = 12
	}
	a.OAuth.DiscoveryURL = strings.TrimSpace(a.OAuth.DiscoveryURL)
}

// Validate checks the settings the selected mode depends on.
func (a *AuthConfig) Validate(isDev bool) error {
	if len(a.TokenSecret) < MinTokenSecretLen {
		return fmt.Errorf("AUTH_TOKEN_SECRET must be at least %d bytes", MinTokenSecretLen)
	}
	switch a.Mode {
	case AuthModeOAuth:
		if a.OAuth.ClientID == "" || a.OAuth.DiscoveryURL == "" {
			return errors.New("AUTH_MODE=oauth requires OAUTH_CLIENT_ID and OAUTH_DISCOVERY_URL")
		}
	case AuthModeMock:
		if !isDev {
			return errors.New("AUTH_MODE=mock is only allowed with DEV=true")
		}
	}
	return nil
}
