// Package config loads and validates the adapter configuration.
//
// DESIGN: Configuration comes from a YAML file with ${VAR} / ${VAR:-default}
// environment expansion, validated up front. The adapter treats all provider
// fields (endpoint, keys, model ids) as opaque strings — they are passed
// through, never interpreted.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/genbridge/genbridge/internal/monitoring"
)

// Config is the root configuration for the generation adapter.
type Config struct {
	Provider ProviderConfig          `yaml:"provider"`  // endpoint and credentials
	Routing  RoutingConfig           `yaml:"routing"`   // model resolution flags
	Logging  monitoring.LoggerConfig `yaml:"logging"`   // structured logging
	UsageLog UsageLogConfig          `yaml:"usage_log"` // persistent generation log
}

// ProviderConfig is the connection surface for one provider endpoint.
type ProviderConfig struct {
	Endpoint       string        `yaml:"endpoint"`        // base URL, e.g. https://api.openai.com/v1
	APIKey         string        `yaml:"api_key"`         // bearer credential
	Organization   string        `yaml:"organization"`    // optional org header
	Project        string        `yaml:"project"`         // optional project header
	Model          string        `yaml:"model"`           // default target model or alias
	EmbeddingModel string        `yaml:"embedding_model"` // pass-through, unused by generation
	Timeout        time.Duration `yaml:"timeout"`         // batch request timeout

	// AWS enables SigV4 request signing for IAM-fronted endpoints; when set,
	// APIKey may be empty.
	AWS *AWSConfig `yaml:"aws"`
}

// AWSConfig selects SigV4 signing parameters.
type AWSConfig struct {
	Service string `yaml:"service"` // defaults to "bedrock"
	Region  string `yaml:"region"`
}

// RoutingConfig carries default model-resolution flags. FallbackMode is a
// per-call caller decision and deliberately has no config field.
type RoutingConfig struct {
	PreviewEnabled bool   `yaml:"preview_enabled"`
	ClassifierHint string `yaml:"classifier_hint"` // "", "flash", or "pro"
}

// UsageLogConfig controls the SQLite generation log.
type UsageLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// envPattern matches ${VAR:-default} or ${VAR}.
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands environment variables with support for
// default values, both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes, expanding
// environment variables and validating the result.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Provider.Endpoint == "" {
		return fmt.Errorf("provider.endpoint is required")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider.model is required")
	}
	// SigV4-signed endpoints authenticate via the AWS credential chain.
	if c.Provider.APIKey == "" && c.Provider.AWS == nil {
		return fmt.Errorf("provider.api_key is required unless provider.aws is set")
	}
	if c.UsageLog.Enabled && c.UsageLog.Path == "" {
		return fmt.Errorf("usage_log.path is required when usage_log.enabled")
	}
	switch c.Routing.ClassifierHint {
	case "", "flash", "pro":
	default:
		return fmt.Errorf("routing.classifier_hint must be empty, \"flash\", or \"pro\"")
	}
	return nil
}
