package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// GateConfig controls the role authorization gate.
type GateConfig struct {
	// PolicyFile is a YAML policy. Empty uses the built-in rules.
	PolicyFile string `env:"GATE_POLICY_FILE"`
	// LoginPath and DeniedPath apply to the built-in rules; a policy file sets its own.
	LoginPath  string `env:"GATE_LOGIN_PATH"  envDefault:"/login"`
	DeniedPath string `env:"GATE_DENIED_PATH" envDefault:"/"`
	// UpstreamURL receives requests the gate lets through. Empty answers them with 404.
	UpstreamURL string `env:"GATE_UPSTREAM_URL"`
	// ReloadDebounce coalesces bursts of file events before a reload.
	ReloadDebounce time.Duration `env:"GATE_RELOAD_DEBOUNCE" envDefault:"250ms"`
}

// Sanitize applies guardrails to gate configuration values.
func (g *GateConfig) Sanitize() {
	g.PolicyFile = strings.TrimSpace(g.PolicyFile)
	g.UpstreamURL = strings.TrimSpace(g.UpstreamURL)
	if g.ReloadDebounce <= 0 {
		g.ReloadDebounce = 250 * time.Millisecond
	}
}

// Upstream parses UpstreamURL. It returns nil when no upstream is configured.
func (g *GateConfig) Upstream() (*url.URL, error) {
	if g.UpstreamURL == "" {
		return nil, nil
	}
	u, err := url.Parse(g.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("GATE_UPSTREAM_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("GATE_UPSTREAM_URL must be an absolute http(s) URL, got %q", g.UpstreamURL)
	}
	return u, nil
}
