// Package config loads runproof tool settings from layered YAML files.
//
// The global file (~/.runproof/config.yaml) is read first and the project
// file (./.runproof/config.yaml) overrides it. Missing files are skipped.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/diff"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".runproof"

// FileName is the configuration file inside DirName.
const FileName = "config.yaml"

// Config is the merged tool configuration.
type Config struct {
	// Database is the SQLite run store path.
	Database string `yaml:"database" mapstructure:"database"`

	// Format is the default CLI output format: text or json.
	Format string `yaml:"format" mapstructure:"format"`

	MaxChangesPerStep int `yaml:"max_changes_per_step" mapstructure:"max_changes_per_step"`

	// Listen is the address `runproof serve` binds.
	Listen string `yaml:"listen" mapstructure:"listen"`

	Canonical CanonicalConfig `yaml:"canonical" mapstructure:"canonical"`
}

// CanonicalConfig lists field names added to the canonicalizer defaults.
type CanonicalConfig struct {
	VolatileFields  []string `yaml:"volatile_fields" mapstructure:"volatile_fields"`
	UnorderedFields []string `yaml:"unordered_fields" mapstructure:"unordered_fields"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database:          filepath.Join(DirName, "runs.db"),
		Format:            "text",
		MaxChangesPerStep: diff.DefaultMaxChangesPerStep,
		Listen:            "127.0.0.1:8088",
	}
}

// Load merges the global and project configuration over the defaults.
func Load() (*Config, error) {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DirName, FileName))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DirName, FileName))
	}
	return LoadFiles(paths...)
}

// LoadFiles merges the given files over the defaults in order. Files that
// do not exist are skipped; unreadable or malformed files are errors.
func LoadFiles(paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	for _, path := range paths {
		if err := loadFile(path, cfg); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}

// Validate rejects values the commands cannot use.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: format must be text or json, got %q", c.Format)
	}
	if c.MaxChangesPerStep < 1 {
		return fmt.Errorf("config: max_changes_per_step must be >= 1, got %d", c.MaxChangesPerStep)
	}
	return nil
}

// CanonicalOptions returns the canonicalizer options with the configured
// extra field names applied.
func (c *Config) CanonicalOptions() canon.Options {
	return canon.DefaultOptions().WithExtraFields(c.Canonical.VolatileFields, c.Canonical.UnorderedFields)
}

// Hasher returns a content hasher honouring the configured field names.
func (c *Config) Hasher() canon.Hasher {
	if len(c.Canonical.VolatileFields) == 0 && len(c.Canonical.UnorderedFields) == 0 {
		return canon.DefaultHasher()
	}
	return canon.NewHasher(c.CanonicalOptions())
}
