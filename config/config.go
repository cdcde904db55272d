package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: token signing, provider sync and role mapping
//   - session.go: session cookie and token lifetimes
//   - gate.go: role policy and upstream
//   - database.go: PostgreSQL and Redis
//   - http.go: HTTP server
//   - client.go: the client-side auth context used by the CLI
//   - services.go: which services this process runs
type AppConfig struct {
	// IsDev relaxes production guards (insecure cookies, mock auth).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth    AuthConfig
	Session SessionConfig
	Gate    GateConfig
	HTTP    HTTPConfig
	Client  ClientConfig `envPrefix:"CLIENT_"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Services is a comma-delimited list of services to run.
	Services string `env:"SERVICES" envDefault:"http,policy-watcher"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.detectDevMode()

	c.Auth.Sanitize()
	c.Session.Sanitize()
	c.Gate.Sanitize()
	c.HTTP.Sanitize()
	c.Client.Sanitize()
	c.Redis.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports configuration that cannot run. Call it after Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := c.GetEnabledServices(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Auth.Validate(c.IsDev); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Gate.Upstream(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Postgres.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP edge is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsPolicyWatcherEnabled returns true if policy file hot reload is enabled.
// It needs a policy file to watch.
func (c *AppConfig) IsPolicyWatcherEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModePolicyWatcher] && c.Gate.PolicyFile != ""
}
