// Package config reads and writes the project configuration file,
// pennywise.yaml or pennywise.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Rhymond/go-money"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/pennywise-dev/pennywise/internal/logging"
)

// File names looked up in a project root, in order.
const (
	YAMLFile = "pennywise.yaml"
	TOMLFile = "pennywise.toml"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config represents the top-level project configuration.
type Config struct {
	Currency string       `yaml:"currency" toml:"currency"`
	Store    StoreConfig  `yaml:"store" toml:"store"`
	Import   ImportConfig `yaml:"import" toml:"import"`
	Log      LogConfig    `yaml:"log" toml:"log"`
	Git      GitConfig    `yaml:"git" toml:"git"`
}

// StoreConfig selects the store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"` // relative to the project root
}

// ImportConfig controls the importer.
type ImportConfig struct {
	Format               string `yaml:"format" toml:"format"`
	BatchSize            int    `yaml:"batch_size" toml:"batch_size"`
	AutoCreateCategories bool   `yaml:"auto_create_categories" toml:"auto_create_categories"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// GitConfig controls committing project files after changes.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit" toml:"auto_commit"`
	AuthorName  string `yaml:"author_name" toml:"author_name"`
	AuthorEmail string `yaml:"author_email" toml:"author_email"`
}

// Load reads a config file from disk. The format follows the extension;
// anything but .toml is read as YAML. Fields the file omits keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the config file in root, preferring YAML.
func Find(root string) (string, error) {
	for _, name := range []string{YAMLFile, TOMLFile} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s or %s in %s: %w", YAMLFile, TOMLFile, root, os.ErrNotExist)
}

// Save writes a Config, as TOML when path ends in .toml and YAML otherwise.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project. An
// empty currency means USD.
func Default(currency string) *Config {
	if currency == "" {
		currency = money.USD
	}
	return &Config{
		Currency: strings.ToUpper(currency),
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   "pennywise.db",
		},
		Import: ImportConfig{
			Format:    "generic",
			BatchSize: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "pennywise",
			AuthorEmail: "pennywise@localhost",
		},
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if money.GetCurrency(c.Currency) == nil {
		errs = append(errs, fmt.Errorf("unknown currency %q", c.Currency))
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != logging.FormatText && f != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Git.AutoCommit && (c.Git.AuthorName == "" || c.Git.AuthorEmail == "") {
		errs = append(errs, errors.New("git.author_name and git.author_email are required with git.auto_commit"))
	}
	return errors.Join(errs...)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
