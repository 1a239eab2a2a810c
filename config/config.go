// ABOUTME: Configuration loading for the captivate SDK and CLI
// ABOUTME: Supports YAML and TOML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/captivate-ai/captivate-go/memstore"
)

// Config is the complete SDK/CLI configuration.
type Config struct {
	Environment string          `yaml:"environment" toml:"environment"` // delivery environment: "dev" or "prod"
	Store       memstore.Config `yaml:"store" toml:"store"`
	Memory      MemoryConfig    `yaml:"memory" toml:"memory"`
	Logging     LoggingConfig   `yaml:"logging" toml:"logging"`
}

// MemoryConfig controls conversational memory features.
type MemoryConfig struct {
	Enabled         bool `yaml:"enabled" toml:"enabled"`
	ContextTracking bool `yaml:"context_tracking" toml:"context_tracking"`
	GenerateTitle   bool `yaml:"generate_title" toml:"generate_title"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path. Files ending in
// .toml are decoded as TOML; everything else is decoded as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if filepath.Ext(path) == ".toml" {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable
// values. Unset variables are replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that the configuration is usable. Unknown environment
// values are accepted here: delivery deterministically treats anything
// other than "prod" as "dev".
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "sqlite", "bolt":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	return nil
}
