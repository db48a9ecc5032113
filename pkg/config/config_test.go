package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validEnv returns the minimal set of required variables.
func validEnv() map[string]string {
	return map[string]string{
		"HELPDESK_API_TOKEN":       "hd-token",
		"HELPDESK_BASE_URL":        "https://helpdesk.example.com",
		"HELPDESK_ADMIN_ID":        "admin-1",
		"TRACKER_API_TOKEN":        "tr-token",
		"TRACKER_BASE_URL":         "https://tracker.example.com",
		"TRACKER_DATABASE_ID":      "db-1",
		"TRACKER_DONE_PROPERTY_ID": "prop-done",
		"SLACK_BOT_TOKEN":          "xoxb-test",
		"SLACK_WORKSPACE_URL":      "https://jumpdesk.slack.com",
		"LLM_API_KEY":              "sk-test",
	}
}

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 24*time.Hour, cfg.RequestRetention)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.WSWriteTimeout)
	assert.Equal(t, 8, cfg.MaxConcurrentRequests)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLMBaseURL)
	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.DoneChannelID)
}

func TestLoadOverrides(t *testing.T) {
	env := validEnv()
	env["ADAPTER_TIMEOUT"] = "15s"
	env["MAX_CONCURRENT_REQUESTS"] = "2"
	env["LOG_LEVEL"] = "debug"
	env["SLACK_WORKSPACE_URL"] = "https://jumpdesk.slack.com/"
	env["DONE_NOTIFICATION_CHANNEL_ID"] = "C0DONE"
	setEnv(t, env)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 2, cfg.MaxConcurrentRequests)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "https://jumpdesk.slack.com", cfg.SlackWorkspaceURL, "trailing slash trimmed")
	assert.Equal(t, "C0DONE", cfg.DoneChannelID)
}

func TestLoadMissingRequired(t *testing.T) {
	for missing := range validEnv() {
		t.Run(missing, func(t *testing.T) {
			env := validEnv()
			env[missing] = ""
			setEnv(t, env)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), missing)
		})
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ADAPTER_TIMEOUT", "soon"},
		{"ADAPTER_TIMEOUT", "-5s"},
		{"REQUEST_RETENTION", "never"},
		{"SWEEP_INTERVAL", "0s"},
		{"WS_WRITE_TIMEOUT", "fast"},
		{"MAX_CONCURRENT_REQUESTS", "many"},
		{"MAX_CONCURRENT_REQUESTS", "0"},
		{"LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			env := validEnv()
			env[tt.key] = tt.value
			setEnv(t, env)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
