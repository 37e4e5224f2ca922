// Package config provides YAML configuration parsing for the monitor.
//
// This package enables running the monitor as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	base_url: http://127.0.0.1:8000
//	timeout: 5s
//	max_attempts: 3
//
//	fast_interval: 2s
//	slow_interval: 10s
//
//	listen: 127.0.0.1:9000
//	log_level: info
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minFastInterval is the minimum allowed fast polling interval.
// This prevents accidental DoS of the backend with overly aggressive polling.
const minFastInterval = 100 * time.Millisecond

// Config is the root configuration structure for the monitor.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
// Zero-valued fields fall back to the library defaults.
type Config struct {
	// BaseURL is the backend base URL. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-attempt request timeout.
	// Accepts duration strings like "5s", "500ms".
	Timeout Duration `yaml:"timeout"`

	// MaxAttempts is the total number of attempts per request,
	// including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffBase is the delay before the first retry. It doubles for
	// each subsequent retry.
	BackoffBase Duration `yaml:"backoff_base"`

	// FastInterval is the cadence of the device and connection status
	// stream.
	FastInterval Duration `yaml:"fast_interval"`

	// SlowInterval is the cadence of the metrics stream.
	SlowInterval Duration `yaml:"slow_interval"`

	// HeavyCycle is the number of slow cycles between storage fetches.
	HeavyCycle int `yaml:"heavy_cycle"`

	// BootRetryDelay is the pause between health probes while waiting
	// for the backend to come up.
	BootRetryDelay Duration `yaml:"boot_retry_delay"`

	// ReconnectDelay is the pause before the automatic reconnect probe
	// after the backend goes offline.
	ReconnectDelay Duration `yaml:"reconnect_delay"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Listen is the optional address for the inspect HTTP server,
	// e.g. "127.0.0.1:9000". Empty disables the server.
	Listen string `yaml:"listen"`

	// LogLevel is the minimum log level: debug, info, warn, or error.
	// Defaults to info.
	LogLevel string `yaml:"log_level"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in BaseURL and Header values.
// Fields left unset keep the library defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	expanded, err := expandEnvVars(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	c.BaseURL = expanded

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	if c.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", c.Timeout.Duration())
	}
	if c.BackoffBase.Duration() < 0 {
		return fmt.Errorf("backoff_base cannot be negative, got %s", c.BackoffBase.Duration())
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative, got %d", c.MaxAttempts)
	}
	if c.HeavyCycle < 0 {
		return fmt.Errorf("heavy_cycle cannot be negative, got %d", c.HeavyCycle)
	}

	if c.FastInterval != 0 && c.FastInterval.Duration() < minFastInterval {
		return fmt.Errorf("fast_interval must be at least %s, got %s", minFastInterval, c.FastInterval.Duration())
	}
	if c.SlowInterval != 0 && c.SlowInterval.Duration() < minFastInterval {
		return fmt.Errorf("slow_interval must be at least %s, got %s", minFastInterval, c.SlowInterval.Duration())
	}
	if c.FastInterval != 0 && c.SlowInterval != 0 && c.SlowInterval.Duration() < c.FastInterval.Duration() {
		return fmt.Errorf("slow_interval (%s) must not be shorter than fast_interval (%s)",
			c.SlowInterval.Duration(), c.FastInterval.Duration())
	}

	if c.BootRetryDelay.Duration() < 0 {
		return fmt.Errorf("boot_retry_delay cannot be negative, got %s", c.BootRetryDelay.Duration())
	}
	if c.ReconnectDelay.Duration() < 0 {
		return fmt.Errorf("reconnect_delay cannot be negative, got %s", c.ReconnectDelay.Duration())
	}

	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
		}
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// SlogLevel returns the slog level for the configured log_level.
// The empty string maps to [slog.LevelInfo].
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
