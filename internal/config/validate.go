package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Realtime.TokenURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "realtime.tokenUrl",
			Message: "token endpoint is required",
		})
	} else if !validURL(cfg.Realtime.TokenURL) {
		issues = append(issues, ValidationIssue{
			Path:    "realtime.tokenUrl",
			Message: fmt.Sprintf("not a valid http(s) URL: %q", cfg.Realtime.TokenURL),
		})
	}
	if cfg.Realtime.SignalURL != "" && !validURL(cfg.Realtime.SignalURL) {
		issues = append(issues, ValidationIssue{
			Path:    "realtime.signalUrl",
			Message: fmt.Sprintf("not a valid http(s) URL: %q", cfg.Realtime.SignalURL),
		})
	}
	if cfg.Realtime.CampaignID == "" {
		issues = append(issues, ValidationIssue{
			Path:    "realtime.campaignId",
			Message: "campaign id is required",
		})
	}

	validBackends := []string{"sqlite", "redis", "memory"}
	if cfg.Store.Backend != "" && !slices.Contains(validBackends, cfg.Store.Backend) {
		issues = append(issues, ValidationIssue{
			Path:    "store.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", validBackends, cfg.Store.Backend),
		})
	}
	if cfg.Store.Backend == "redis" && cfg.Store.Redis.Addr == "" {
		issues = append(issues, ValidationIssue{
			Path:    "store.redis.addr",
			Message: "addr is required for the redis backend",
		})
	}

	if cfg.UI.Port < 0 || cfg.UI.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "ui.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.UI.Port),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
