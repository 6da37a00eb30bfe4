// Package config loads harness configuration from environment variables,
// validates required fields, and provides sensible defaults.
//
// Everything can run with zero environment set: the defaults target a local
// test server and a headless browser.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all harness configuration.
type Config struct {
	// Application under test
	BaseURL string // E2E_BASE_URL

	// Browser settings
	Headless bool          // E2E_HEADLESS
	Timeout  time.Duration // E2E_TIMEOUT: default wait for navigation, selectors, and login confirmation

	// Session cache settings
	SessionCookie     string        // E2E_SESSION_COOKIE: cookie name carrying session evidence
	SessionTTL        time.Duration // E2E_SESSION_TTL: how long a cached entry may live before forced re-login
	OfflineValidation bool          // E2E_OFFLINE_VALIDATION: skip the live backend check when reusing a session
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:           getEnvOrDefault("E2E_BASE_URL", "http://localhost:8080"),
		Headless:          parseBoolOrDefault("E2E_HEADLESS", true),
		Timeout:           parseDurationOrDefault("E2E_TIMEOUT", 5*time.Second),
		SessionCookie:     getEnvOrDefault("E2E_SESSION_COOKIE", "session_id"),
		SessionTTL:        parseDurationOrDefault("E2E_SESSION_TTL", 30*time.Minute),
		OfflineValidation: parseBoolOrDefault("E2E_OFFLINE_VALIDATION", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.BaseURL == "" {
		errs = append(errs, "E2E_BASE_URL must not be empty")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("E2E_BASE_URL %q is not an absolute URL", c.BaseURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, "E2E_TIMEOUT must be positive")
	}
	if c.SessionCookie == "" {
		errs = append(errs, "E2E_SESSION_COOKIE must not be empty")
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, "E2E_SESSION_TTL must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
