package config

import (
	"log/slog"
	"strings"
)

const defaultMetricsNamespace = "marketgate"

// ObservabilityConfig groups logging and metrics configuration.
type ObservabilityConfig struct {
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// MetricsEnabled exposes Prometheus metrics at GET /metrics.
	MetricsEnabled   bool   `env:"METRICS_ENABLED"   envDefault:"true"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"marketgate"`
}

// Sanitize normalises values and enforces safe defaults.
func (c *ObservabilityConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != "text" {
		c.LogFormat = "json"
	}
	if c.MetricsNamespace = strings.TrimSpace(c.MetricsNamespace); c.MetricsNamespace == "" {
		c.MetricsNamespace = defaultMetricsNamespace
	}
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c *ObservabilityConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
