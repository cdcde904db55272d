package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketgate/config"
	"github.com/target/marketgate/internal/gate"
	"github.com/target/marketgate/internal/observability/metrics"
)

const adminOnlyPolicy = `login_path: /signin
denied_path: /denied
rules:
  - pattern: /admin
    area: admin
`

func TestLoadPolicy_BuiltIn(t *testing.T) {
	p, err := LoadPolicy(config.GateConfig{LoginPath: "/signin", DeniedPath: "/home"})
	require.NoError(t, err)
	assert.Equal(t, "/signin", p.LoginPath)
	assert.Equal(t, "/home", p.DeniedPath)
	assert.Equal(t, gate.DefaultRules(), p.Rules())
}

func TestLoadPolicy_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(adminOnlyPolicy), 0o600))

	// The file's own paths win over the environment.
	p, err := LoadPolicy(config.GateConfig{PolicyFile: path, LoginPath: "/login"})
	require.NoError(t, err)
	assert.Equal(t, "/signin", p.LoginPath)
	assert.Len(t, p.Rules(), 1)

	_, err = LoadPolicy(config.GateConfig{PolicyFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.ErrorContains(t, err, "load gate policy")
}

func TestBuildGate_RecordsLoadedRules(t *testing.T) {
	m := metrics.New(metrics.Config{Registry: prometheus.NewRegistry()})
	g, err := BuildGate(GateConfig{Gate: config.GateConfig{LoginPath: "/login", DeniedPath: "/"}, Metrics: m, Logger: discardLogger()})
	require.NoError(t, err)
	require.NotNil(t, g.Policy())

	n, err := testutil.GatherAndCount(m.Registry(), "marketgate_gate_policy_rules")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuildPolicyWatcher_ReloadsIntoGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(adminOnlyPolicy), 0o600))

	cfg := GateConfig{
		Gate:    config.GateConfig{PolicyFile: path, ReloadDebounce: 10 * time.Millisecond},
		Metrics: metrics.New(metrics.Config{Registry: prometheus.NewRegistry()}),
		Logger:  discardLogger(),
	}
	g, err := BuildGate(cfg)
	require.NoError(t, err)
	w, err := BuildPolicyWatcher(cfg, g)
	require.NoError(t, err)
	assert.Len(t, g.Policy().Rules(), 1)

	updated := adminOnlyPolicy + "  - pattern: /cart\n    auth_only: true\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, w.Reload())
	assert.Len(t, g.Policy().Rules(), 2)

	// A broken file leaves the previous policy in place.
	require.NoError(t, os.WriteFile(path, []byte("rules: [\n"), 0o600))
	require.Error(t, w.Reload())
	assert.Len(t, g.Policy().Rules(), 2)
}
