// Package config loads entgraph settings from YAML with environment overrides
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nainya/entgraph/internal/logger"
)

var validate = validator.New()

// Config holds all entgraph settings
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// StoreConfig controls store construction
type StoreConfig struct {
	// NextID seeds the allocator counter when set
	NextID *uint64 `yaml:"next_id,omitempty" validate:"omitempty,gte=1"`

	// ValidateSchemas attaches the fixture's schema registry to the store
	ValidateSchemas bool `yaml:"validate_schemas"`
}

// MetricsConfig controls the metrics dump
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Store: StoreConfig{
			ValidateSchemas: true,
		},
	}
}

// Load reads the config at path over the defaults, applies environment
// overrides and validates the result. An empty path or a missing file
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("ENTGRAPH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ENTGRAPH_LOG_PRETTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Pretty = b
		}
	}
	if v := os.Getenv("ENTGRAPH_NEXT_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Store.NextID = &n
		}
	}
}

// Validate checks field constraints
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Logger builds the logger described by the config, writing to out
func (c Config) Logger(out io.Writer) *logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		Output: out,
	})
}
