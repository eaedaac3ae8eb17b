// Package config provides configuration types and helpers for stencil.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// DefaultInput is the file processed when no path is given on the command
// line or in the configuration.
const DefaultInput = "data/input.txt"

// Config holds the application-wide configuration.
type Config struct {
	Format      string           `mapstructure:"format"`
	Verbose     bool             `mapstructure:"verbose"`
	LogLevel    string           `mapstructure:"log_level"`
	Color       string           `mapstructure:"color"`
	Input       string           `mapstructure:"input"`
	MaxExamples int              `mapstructure:"max_examples"`
	JSONInput   bool             `mapstructure:"json_input"`
	Recognizer  RecognizerConfig `mapstructure:"recognizer"`
	Redaction   RedactionConfig  `mapstructure:"redaction"`
}

// RedactionConfig controls scrubbing of the raw examples kept per template.
type RedactionConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Patterns []string `mapstructure:"patterns"` // empty means the default set
}

// RecognizerConfig selects and configures the entity recognizer used by the
// final masking stage.
type RecognizerConfig struct {
	// Provider selects the recognizer: "rules" or "ollama"
	Provider string `mapstructure:"provider"`

	// Gazetteer is an optional YAML file of known entities for the rules provider
	Gazetteer string `mapstructure:"gazetteer"`

	Ollama OllamaConfig `mapstructure:"ollama"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host      string `mapstructure:"host"`       // API endpoint
	Model     string `mapstructure:"model"`      // Model used for entity tagging
	Timeout   string `mapstructure:"timeout"`    // Per-request timeout, e.g. "30s" or "2m"
	CacheSize int    `mapstructure:"cache_size"` // Messages whose answers are kept; negative disables
}

// RequestTimeout parses the configured Ollama timeout. An empty or invalid
// value yields the fallback.
func (c OllamaConfig) RequestTimeout(fallback time.Duration) time.Duration {
	if strings.TrimSpace(c.Timeout) == "" {
		return fallback
	}
	d, err := ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ParseLogLevel converts a string to a slog.Level.
// Unknown strings default to slog.LevelError so diagnostics stay quiet.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "dbg":
		return slog.LevelDebug
	case "info", "inf":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
