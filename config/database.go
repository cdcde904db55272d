package config

import (
	"errors"
	"strings"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"marketgate"`
	Password string `env:"PASSWORD" envDefault:"marketgate"`
	Name     string `env:"NAME"     envDefault:"marketgate"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
	MaxOpenConns         int  `env:"MAX_OPEN_CONNS"          envDefault:"25"`
}

// Validate checks the connection settings.
func (d *DBConfig) Validate() error {
	if d.Host == "" || d.Name == "" {
		return errors.New("DB_HOST and DB_NAME are required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return errors.New("DB_PORT must be a valid TCP port")
	}
	return nil
}

// RedisConfig contains Redis configuration. Redis backs token revocation.
type RedisConfig struct {
	// Enabled turns revocation on. Without Redis, logout only clears the cookie.
	Enabled            bool     `env:"ENABLED"              envDefault:"true"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
	// RevocationPrefix namespaces revoked token ids.
	RevocationPrefix string `env:"REVOCATION_PREFIX" envDefault:"marketgate:revoked:"`
}

// Sanitize applies guardrails to Redis configuration values.
func (r *RedisConfig) Sanitize() {
	r.URI = strings.TrimSpace(r.URI)
	if r.RevocationPrefix == "" {
		r.RevocationPrefix = "marketgate:revoked:"
	}
	if r.UseCluster && r.UseSentinel {
		r.UseSentinel = false
	}
}
