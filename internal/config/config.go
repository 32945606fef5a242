// Package config loads the tidemark run configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the run configuration.
//
// Unrecognized keys in the file are ignored, so a config shared with other
// tooling loads cleanly.
type Config struct {
	Source struct {
		// Path is the location of the source CSV batch.
		Path string `yaml:"path"`
	} `yaml:"source"`

	Target struct {
		// Database is the SQLite database path (required).
		Database string `yaml:"database"`
		// Table is the target table identifier (required).
		Table string `yaml:"table"`
	} `yaml:"target"`

	Staging struct {
		// Prefix names staging tables <prefix>_<run id>.
		// Defaults to "<table>_staging".
		Prefix string `yaml:"prefix"`
	} `yaml:"staging"`

	Logging struct {
		// Level is one of debug, info, warn, error. Defaults to info.
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Error reports invalid or incomplete configuration. Configuration failures
// are fatal at startup, before any store access.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return "configuration: " + e.Msg
}

// IsConfigError reports whether err is (or wraps) a configuration Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Target.Database == "" {
		return &Error{Msg: "target.database is required"}
	}
	if c.Target.Table == "" {
		return &Error{Msg: "target.table is required"}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Staging.Prefix == "" {
		c.Staging.Prefix = c.Target.Table + "_staging"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
