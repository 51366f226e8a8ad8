// Package config loads the ledgerql configuration file.
//
//	store: ledgerql.db        # SQLite document store and compilation log
//	catalog: ./catalog        # CUE catalog directory (used instead of the store)
//	cache_size: 64            # schema registry table cache
//	default_ledger: A         # replaces {LEDGER} when a formula names none
//	mode: summary             # summary or details
//
// Command-line flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerql/internal/query"
	"github.com/roach88/ledgerql/internal/schema"
)

// DefaultPath is the file read when no --config flag is given.
const DefaultPath = "ledgerql.yaml"

// Config holds the settings shared by all commands.
type Config struct {
	Store         string `yaml:"store"`
	Catalog       string `yaml:"catalog,omitempty"`
	CacheSize     int    `yaml:"cache_size"`
	DefaultLedger string `yaml:"default_ledger"`
	Mode          string `yaml:"mode"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Store:         "ledgerql.db",
		CacheSize:     schema.DefaultCacheSize,
		DefaultLedger: query.DefaultLedger,
		Mode:          query.ModeSummary.String(),
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields Default().
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML over the defaults and validates the result. Empty
// input yields Default().
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	if c.CacheSize < 1 {
		return fmt.Errorf("cache_size must be at least 1, got %d", c.CacheSize)
	}
	if strings.TrimSpace(c.DefaultLedger) == "" {
		return fmt.Errorf("default_ledger is required")
	}
	if _, err := query.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Store == "" && c.Catalog == "" {
		return fmt.Errorf("one of store or catalog is required")
	}
	return nil
}

// QueryMode returns Mode parsed. Validate has already rejected bad values.
func (c Config) QueryMode() query.Mode {
	m, _ := query.ParseMode(c.Mode)
	return m
}
