package config

import (
	"strings"
	"time"
)

const (
	defaultLoginTTL = 7 * 24 * time.Hour
	defaultSyncTTL  = time.Hour
)

// SessionConfig controls the session cookie and token lifetimes.
type SessionConfig struct {
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"auth_token"`
	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request host.
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`
	// CookieSecure forces the Secure attribute even on plain HTTP requests.
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	// LoginTTL is the lifetime of tokens minted by POST /auth/login.
	LoginTTL time.Duration `env:"SESSION_LOGIN_TTL" envDefault:"168h"`
	// SyncTTL is the lifetime of tokens minted by POST /auth/sync.
	SyncTTL time.Duration `env:"SESSION_SYNC_TTL" envDefault:"1h"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	s.CookieName = strings.TrimSpace(s.CookieName)
	if s.CookieName == "" {
		s.CookieName = "auth_token"
	}
	s.CookieDomain = strings.TrimSpace(s.CookieDomain)
	if s.LoginTTL <= 0 {
		s.LoginTTL = defaultLoginTTL
	}
	if s.SyncTTL <= 0 {
		s.SyncTTL = defaultSyncTTL
	}
}
