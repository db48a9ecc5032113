// Package config loads the service configuration from environment
// variables. The .env file itself is loaded by main before Load runs.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full configuration surface of the service.
type Config struct {
	// Helpdesk API access.
	HelpdeskAPIToken string
	HelpdeskBaseURL  string
	// HelpdeskAdminID is the user id replies are authored as.
	HelpdeskAdminID string

	// Knowledge-base (tracker) API access.
	TrackerAPIToken   string
	TrackerBaseURL    string
	TrackerDatabaseID string
	// TrackerDonePropertyID identifies the "done" checkbox property the
	// completion webhook watches for.
	TrackerDonePropertyID string

	// Chat service access.
	SlackBotToken     string
	SlackWorkspaceURL string
	// SlackAPIURL overrides the Slack API endpoint (tests only).
	SlackAPIURL string

	// LLM decision service.
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// DoneChannelID is the fallback channel for completion notices when a
	// ticket has no chat channel of its own. Optional.
	DoneChannelID string

	HTTPPort              string
	AdapterTimeout        time.Duration
	MaxConcurrentRequests int
	RequestRetention      time.Duration
	SweepInterval         time.Duration
	WSWriteTimeout        time.Duration
	LogLevel              slog.Level
}

// Load reads configuration from the environment, applies defaults, and
// validates required values. Fails fast with the offending variable named.
func Load() (Config, error) {
	cfg := Config{
		HelpdeskAPIToken:      os.Getenv("HELPDESK_API_TOKEN"),
		HelpdeskBaseURL:       os.Getenv("HELPDESK_BASE_URL"),
		HelpdeskAdminID:       os.Getenv("HELPDESK_ADMIN_ID"),
		TrackerAPIToken:       os.Getenv("TRACKER_API_TOKEN"),
		TrackerBaseURL:        os.Getenv("TRACKER_BASE_URL"),
		TrackerDatabaseID:     os.Getenv("TRACKER_DATABASE_ID"),
		TrackerDonePropertyID: os.Getenv("TRACKER_DONE_PROPERTY_ID"),
		SlackBotToken:         os.Getenv("SLACK_BOT_TOKEN"),
		SlackWorkspaceURL:     strings.TrimRight(os.Getenv("SLACK_WORKSPACE_URL"), "/"),
		SlackAPIURL:           os.Getenv("SLACK_API_URL"),
		LLMAPIKey:             os.Getenv("LLM_API_KEY"),
		LLMBaseURL:            getEnvOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:              getEnvOrDefault("LLM_MODEL", "gpt-4o"),
		DoneChannelID:         os.Getenv("DONE_NOTIFICATION_CHANNEL_ID"),
		HTTPPort:              getEnvOrDefault("HTTP_PORT", "8080"),
	}

	required := []struct {
		key   string
		value string
	}{
		{"HELPDESK_API_TOKEN", cfg.HelpdeskAPIToken},
		{"HELPDESK_BASE_URL", cfg.HelpdeskBaseURL},
		{"HELPDESK_ADMIN_ID", cfg.HelpdeskAdminID},
		{"TRACKER_API_TOKEN", cfg.TrackerAPIToken},
		{"TRACKER_BASE_URL", cfg.TrackerBaseURL},
		{"TRACKER_DATABASE_ID", cfg.TrackerDatabaseID},
		{"TRACKER_DONE_PROPERTY_ID", cfg.TrackerDonePropertyID},
		{"SLACK_BOT_TOKEN", cfg.SlackBotToken},
		{"SLACK_WORKSPACE_URL", cfg.SlackWorkspaceURL},
		{"LLM_API_KEY", cfg.LLMAPIKey},
	}
	for _, r := range required {
		if r.value == "" {
			return Config{}, fmt.Errorf("%s is required", r.key)
		}
	}

	var err error
	if cfg.AdapterTimeout, err = getDuration("ADAPTER_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RequestRetention, err = getDuration("REQUEST_RETENTION", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.WSWriteTimeout, err = getDuration("WS_WRITE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MaxConcurrentRequests, err = getInt("MAX_CONCURRENT_REQUESTS", 8); err != nil {
		return Config{}, err
	}
	if cfg.MaxConcurrentRequests < 1 {
		return Config{}, fmt.Errorf("MAX_CONCURRENT_REQUESTS must be positive")
	}
	if cfg.LogLevel, err = parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}
