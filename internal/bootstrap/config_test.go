package bootstrap

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketgate/config"
)

func TestInitLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := initLogger(&buf, config.ObservabilityConfig{LogLevel: "warn", LogFormat: "json"})

	logger.Info("dropped")
	logger.Warn("kept", "component", "gate")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "gate", rec["component"])

	buf.Reset()
	logger = initLogger(&buf, config.ObservabilityConfig{LogLevel: "info", LogFormat: "text"})
	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestGetEnabledServices(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.AppConfig
		want []string
	}{
		{"nil config", nil, []string{}},
		{"sorted", &config.AppConfig{Services: "policy-watcher,http"}, []string{"http", "policy-watcher"}},
		{"invalid", &config.AppConfig{Services: "cron"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetEnabledServices(tt.cfg))
		})
	}
}

func TestValidateServiceConfig(t *testing.T) {
	require.Error(t, ValidateServiceConfig(nil))

	cfg := &config.AppConfig{
		Services: "http",
		Auth:     config.AuthConfig{Mode: config.AuthModeBackend, TokenSecret: testSecret},
		Postgres: config.DBConfig{Host: "db", Port: 5432, Name: "marketgate"},
	}
	require.NoError(t, ValidateServiceConfig(cfg))

	cfg.Auth.TokenSecret = ""
	require.Error(t, ValidateServiceConfig(cfg))
}
