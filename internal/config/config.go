// Package config loads and validates the runtime configuration from YAML.
// Environment variable references like ${ANTHROPIC_API_KEY} are expanded
// before parsing, so secrets stay out of the file itself.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Storage  StorageConfig  `yaml:"storage"`
	Agents   AgentsConfig   `yaml:"agents"`
	Exec     ExecConfig     `yaml:"exec"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ProviderConfig selects the LLM backend.
type ProviderConfig struct {
	// Type is "anthropic" or "openai".
	Type string `yaml:"type"`

	APIKey string `yaml:"api_key"`

	// Model overrides the backend default when set.
	Model string `yaml:"model"`

	// BaseURL points at a proxy or compatible server.
	BaseURL string `yaml:"base_url"`
}

// StorageConfig selects the document and session-state backend.
type StorageConfig struct {
	// Type is "memory" or "s3". Empty defaults to memory.
	Type string `yaml:"type"`

	S3 S3Config `yaml:"s3"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// AgentsConfig controls agent definition resolution.
type AgentsConfig struct {
	// BaseDir is searched first for .bmad-core/agents/{id}.md.
	BaseDir string `yaml:"base_dir"`

	// FallbackDir is searched when BaseDir misses.
	FallbackDir string `yaml:"fallback_dir"`

	// ExpansionPacks are extra roots holding .bmad-* pack directories.
	ExpansionPacks []string `yaml:"expansion_packs"`
}

// ExecConfig controls the execute_command tool.
type ExecConfig struct {
	// Enabled turns the tool on. Off by default.
	Enabled bool `yaml:"enabled"`

	// Whitelist is "default", "content-creation", or a custom list of
	// command names under Commands.
	Whitelist string   `yaml:"whitelist"`
	Commands  []string `yaml:"commands"`

	// Timeout per command run.
	Timeout time.Duration `yaml:"timeout"`

	// Env is overlaid on the inherited environment.
	Env map[string]string `yaml:"env"`
}

// SessionConfig holds per-session defaults the host can still override.
type SessionConfig struct {
	// CostLimit in USD. Zero means unlimited.
	CostLimit float64 `yaml:"cost_limit"`

	AutoSave bool `yaml:"auto_save"`

	// MaxOutputTokens per provider turn. Zero uses the provider default.
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads, expands, parses, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes config from YAML. Unknown fields are rejected so typos in
// the file fail loudly instead of silently using defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected a single YAML document")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when the file omits a field.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{Type: "anthropic"},
		Storage:  StorageConfig{Type: "memory"},
		Agents:   AgentsConfig{BaseDir: "."},
		Exec:     ExecConfig{Whitelist: "default", Timeout: 5 * time.Minute},
		Session:  SessionConfig{AutoSave: true},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Metrics:  MetricsConfig{Listen: ":9090"},
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Provider.Type {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("provider.type must be anthropic or openai, got %q", c.Provider.Type)
	}

	switch c.Storage.Type {
	case "", "memory":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.type is s3")
		}
	default:
		return fmt.Errorf("storage.type must be memory or s3, got %q", c.Storage.Type)
	}

	switch c.Exec.Whitelist {
	case "", "default", "content-creation", "custom":
	default:
		return fmt.Errorf("exec.whitelist must be default, content-creation, or custom, got %q", c.Exec.Whitelist)
	}
	if c.Exec.Whitelist == "custom" && len(c.Exec.Commands) == 0 {
		return fmt.Errorf("exec.commands is required when exec.whitelist is custom")
	}

	if c.Session.CostLimit < 0 {
		return fmt.Errorf("session.cost_limit must not be negative")
	}
	return nil
}
