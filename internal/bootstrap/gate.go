package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/target/marketgate/config"
	"github.com/target/marketgate/internal/gate"
	"github.com/target/marketgate/internal/observability/metrics"
)

// LoadPolicy reads the configured policy file, or builds the built-in rules
// with the configured login and denied paths.
func LoadPolicy(cfg config.GateConfig) (*gate.Policy, error) {
	if cfg.PolicyFile != "" {
		p, err := gate.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("load gate policy: %w", err)
		}
		return p, nil
	}
	p, err := gate.NewPolicy(gate.DefaultRules(), cfg.LoginPath, cfg.DeniedPath)
	if err != nil {
		return nil, fmt.Errorf("build default gate policy: %w", err)
	}
	return p, nil
}

// GateConfig contains dependencies for the gate and its policy watcher.
type GateConfig struct {
	Gate    config.GateConfig
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// BuildGate loads the policy and returns a ready gate.
func BuildGate(cfg GateConfig) (*gate.Gate, error) {
	p, err := LoadPolicy(cfg.Gate)
	if err != nil {
		return nil, err
	}
	cfg.Metrics.PolicyReload(nil, len(p.Rules()))
	if cfg.Logger != nil {
		cfg.Logger.Info("gate policy loaded",
			"source", policySource(cfg.Gate),
			"rules", len(p.Rules()),
			"login_path", p.LoginPath,
			"denied_path", p.DeniedPath,
		)
	}
	return gate.New(p), nil
}

// BuildPolicyWatcher returns a watcher that hot-reloads the policy file into g.
func BuildPolicyWatcher(cfg GateConfig, g *gate.Gate) (*gate.Watcher, error) {
	return gate.NewWatcher(gate.WatcherOptions{
		Path:     cfg.Gate.PolicyFile,
		Gate:     g,
		Logger:   cfg.Logger,
		Debounce: cfg.Gate.ReloadDebounce,
		OnReload: func(err error) {
			cfg.Metrics.PolicyReload(err, len(g.Policy().Rules()))
		},
	})
}

func policySource(cfg config.GateConfig) string {
	if cfg.PolicyFile != "" {
		return cfg.PolicyFile
	}
	return "built-in"
}
