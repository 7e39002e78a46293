// Package config loads the masking engine configuration from JSON5 or YAML
// files with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Secrets     SecretsConfig     `json:"secrets" yaml:"secrets"`
	Redaction   RedactionConfig   `json:"redaction" yaml:"redaction"`
	Logging     LogConfig         `json:"logging" yaml:"logging"`
	Tracing     TracingConfig     `json:"tracing" yaml:"tracing"`
	Credentials CredentialsConfig `json:"credentials" yaml:"credentials"`
}

// SecretsConfig tunes the registry.
type SecretsConfig struct {
	MinLength int `json:"min_length" yaml:"min_length"` // values with fewer runes are never registered (default 4)
	CacheSize int `json:"cache_size" yaml:"cache_size"` // mask memo entries, 0 = disabled
}

// RedactionConfig controls the format-heuristic pass layered after value masking.
type RedactionConfig struct {
	Heuristic bool     `json:"heuristic" yaml:"heuristic"`
	Patterns  []string `json:"patterns,omitempty" yaml:"patterns,omitempty"` // extra regexps; group "secret" narrows the truncated span
}

// LogConfig configures the masked slog pipeline.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // "json" or "text"
	Output string `json:"output,omitempty" yaml:"output,omitempty"` // file path; empty = stderr
}

// TracingConfig configures OTLP export of masked spans.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Exporter    string `json:"exporter" yaml:"exporter"` // "otlp-grpc" or "otlp-http"
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	Insecure    bool   `json:"insecure" yaml:"insecure"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// CredentialsConfig lists where credential values are loaded from.
type CredentialsConfig struct {
	Env         []string `json:"env,omitempty" yaml:"env,omitempty"`                   // exact variable names
	EnvPrefixes []string `json:"env_prefixes,omitempty" yaml:"env_prefixes,omitempty"` // e.g. "GOCLAW_"
	EnvSuffixes []string `json:"env_suffixes,omitempty" yaml:"env_suffixes,omitempty"` // e.g. "_API_KEY", "_TOKEN"
	Files       []string `json:"files,omitempty" yaml:"files,omitempty"`               // dotenv files
	Watch       bool     `json:"watch" yaml:"watch"`                                   // reload files on change
}

// Environment overrides.
const (
	EnvMinLength = "GOCLAW_SECRETS_MIN_LENGTH"
	EnvHeuristic = "GOCLAW_REDACT_HEURISTIC"
	EnvLogLevel  = "LOG_LEVEL"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Secrets:   SecretsConfig{MinLength: 4, CacheSize: 1024},
		Redaction: RedactionConfig{Heuristic: true},
		Logging:   LogConfig{Level: "info", Format: "json"},
		Tracing:   TracingConfig{Exporter: "otlp-grpc", Endpoint: "localhost:4317", Insecure: true, ServiceName: "goclaw-secrets"},
		Credentials: CredentialsConfig{
			EnvSuffixes: []string{"_API_KEY", "_TOKEN", "_SECRET", "_PASSWORD"},
		},
	}
}

// Load reads path (JSON5 for .json/.json5, YAML for .yaml/.yml) over the
// defaults and applies environment overrides. An empty path yields the
// defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".json5":
			err = json5.Unmarshal(data, cfg)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
		}
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvMinLength); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMinLength, err)
		}
		c.Secrets.MinLength = n
	}
	if v := os.Getenv(EnvHeuristic); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHeuristic, err)
		}
		c.Redaction.Heuristic = b
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Secrets.MinLength < 1 {
		return fmt.Errorf("secrets.min_length must be >= 1, got %d", c.Secrets.MinLength)
	}
	if c.Secrets.CacheSize < 0 {
		return fmt.Errorf("secrets.cache_size must be >= 0, got %d", c.Secrets.CacheSize)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp-grpc", "otlp-http":
		default:
			return fmt.Errorf("tracing.exporter must be otlp-grpc or otlp-http, got %q", c.Tracing.Exporter)
		}
	}
	return nil
}
