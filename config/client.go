package config

import (
	"strings"
	"time"
)

// ClientConfig configures the client-side auth context (marketgate client ...).
type ClientConfig struct {
	// ProfileBaseURL is the backend that serves the profile and sync endpoints.
	ProfileBaseURL string        `env:"PROFILE_BASE_URL" envDefault:"http://localhost:8080"`
	ProfilePath    string        `env:"PROFILE_PATH"     envDefault:"/api/me"`
	SyncPath       string        `env:"SYNC_PATH"        envDefault:"/auth/sync"`
	Timeout        time.Duration `env:"TIMEOUT"          envDefault:"10s"`
}

// Sanitize applies guardrails to client configuration values.
func (c *ClientConfig) Sanitize() {
	c.ProfileBaseURL = strings.TrimRight(strings.TrimSpace(c.ProfileBaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}
