package gate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/marketgate/internal/domain/auth"
)

const samplePolicy = `
login_path: /signin
denied_path: /denied
rules:
  - pattern: /admin
    area: admin
  - pattern: /vendor/**
    area: seller
  - pattern: /wishlist
    auth_only: true
`

// writeAtomic replaces path via rename so the watcher never sees a half-written file.
func writeAtomic(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(strings.NewReader(samplePolicy))
	require.NoError(t, err)
	assert.Equal(t, "/signin", p.LoginPath)
	assert.Equal(t, "/denied", p.DeniedPath)
	require.Len(t, p.Rules(), 3)

	r, ok := p.Match("/vendor/a/b")
	require.True(t, ok)
	assert.Equal(t, domainauth.AreaSeller, r.Area)
}

func TestParsePolicy_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"no rules":    "login_path: /login\n",
		"unknown key": "rules:\n  - pattern: /a\n    area: admin\n    role: ADMIN\n",
		"bad area":    "rules:\n  - pattern: /a\n    area: vip\n",
		"not yaml":    "rules: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicy(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestMarshalPolicy_RoundTrip(t *testing.T) {
	data, err := MarshalPolicy(DefaultPolicy())
	require.NoError(t, err)

	p, err := ParsePolicy(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), p.Rules())
}

func TestLoadPolicyFile_Missing(t *testing.T) {
	_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicy), 0o600))

	initial, err := LoadPolicyFile(path)
	require.NoError(t, err)
	g := New(initial)

	reloaded := make(chan error, 8)
	w, err := NewWatcher(WatcherOptions{
		Path:     path,
		Gate:     g,
		Debounce: 20 * time.Millisecond,
		OnReload: func(err error) { reloaded <- err },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	in := Input{Path: "/reports", Token: roleToken(domainauth.RoleCustomer), HasToken: true}
	require.Equal(t, OutcomePassthrough, g.Evaluate(in).Outcome)

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeAtomic(t, path, "rules:\n  - pattern: /reports\n    area: admin\n")

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("policy was not reloaded")
	}
	assert.Equal(t, OutcomeRedirectDenied, g.Evaluate(in).Outcome)

	// A broken file keeps the last good policy.
	writeAtomic(t, path, "rules: [")
	select {
	case err := <-reloaded:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("broken policy was not noticed")
	}
	assert.Equal(t, OutcomeRedirectDenied, g.Evaluate(in).Outcome)
}

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(WatcherOptions{Gate: New(nil)})
	require.Error(t, err)
	_, err = NewWatcher(WatcherOptions{Path: "gate.yaml"})
	require.Error(t, err)
}
