// Package config loads the tdc configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the tdc configuration file.
const ConfigFileName = "tdcache.yaml"

// Config holds all tdc configuration.
type Config struct {
	Data   DataConfig   `yaml:"data"`
	Prices PricesConfig `yaml:"prices"`
}

// DataConfig locates the flat-file sources and the cache database.
type DataConfig struct {
	// Dir holds the reference CSV files and the price file.
	Dir string `yaml:"dir"`
	// DBName is the cache database filename inside Dir.
	DBName string `yaml:"db_name"`
}

// PricesConfig holds price-merge policy.
type PricesConfig struct {
	// File is the market price filename inside the data directory.
	File string `yaml:"file"`
	// PruneMissing removes batch-sourced price rows that no longer appear
	// in the source.
	PruneMissing bool `yaml:"prune_missing"`
}

// ErrInvalidConfig is returned when config validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// DBPath returns the full path of the cache database.
func (c *Config) DBPath() string {
	return filepath.Join(c.Data.Dir, c.Data.DBName)
}

// PricesPath returns the full path of the market price file.
func (c *Config) PricesPath() string {
	return filepath.Join(c.Data.Dir, c.Prices.File)
}

// Load reads config from path, falling back to defaults when path is empty
// or the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Merge fills unset fields of cfg from defaults and returns the result.
func Merge(cfg, defaults *Config) *Config {
	merged := *cfg
	if merged.Data.Dir == "" {
		merged.Data.Dir = defaults.Data.Dir
	}
	if merged.Data.DBName == "" {
		merged.Data.DBName = defaults.Data.DBName
	}
	if merged.Prices.File == "" {
		merged.Prices.File = defaults.Prices.File
	}
	return &merged
}

// Validate checks that config values are usable.
func Validate(cfg *Config) error {
	if cfg.Data.Dir == "" {
		return fmt.Errorf("%w: data.dir must not be empty", ErrInvalidConfig)
	}
	if cfg.Data.DBName == "" {
		return fmt.Errorf("%w: data.db_name must not be empty", ErrInvalidConfig)
	}
	if filepath.Base(cfg.Data.DBName) != cfg.Data.DBName {
		return fmt.Errorf("%w: data.db_name must be a bare filename, got %q",
			ErrInvalidConfig, cfg.Data.DBName)
	}
	if cfg.Prices.File == "" {
		return fmt.Errorf("%w: prices.file must not be empty", ErrInvalidConfig)
	}
	return nil
}
