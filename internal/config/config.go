package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Gate contains confidence-gate thresholds for link promotion and triage.
type Gate struct {
	AutoConfirmThreshold   float64 `toml:"auto_confirm_threshold"`
	LowConfidenceThreshold float64 `toml:"low_confidence_threshold"`
}

// Excerpt contains excerpt extraction limits.
type Excerpt struct {
	// MaxLength bounds stored excerpt text, in runes.
	MaxLength int `toml:"max_length"`
}

// Entity describes one known business entity the linker may target.
type Entity struct {
	Type    string   `toml:"type"`
	ID      string   `toml:"id"`
	Name    string   `toml:"name"`
	Aliases []string `toml:"aliases"`
	Domains []string `toml:"domains"`
}

// Rule is one deterministic allow-list row: payloads whose match field
// contains the token link to the named entity at a fixed confidence.
type Rule struct {
	Match      string  `toml:"match"`
	EntityType string  `toml:"entity_type"`
	EntityID   string  `toml:"entity_id"`
	Confidence float64 `toml:"confidence"`
}

// Linking contains the known-entity catalog and rule table for the linker.
type Linking struct {
	Entities       []Entity `toml:"entities"`
	Rules          []Rule   `toml:"rules"`
	SweepBatchSize int      `toml:"sweep_batch_size"`
}

// Config encapsulates all configuration values for casefile.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Logging: log format and level
//   - Gate: confidence thresholds for auto-confirm and triage
//   - Excerpt: stored excerpt length bound
//   - Linking: known-entity catalog and deterministic rule table
type Config struct {
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
	Gate    Gate    `toml:"gate"`
	Excerpt Excerpt `toml:"excerpt"`
	Linking Linking `toml:"linking"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/casefile/config.toml")
}

// Load locates, parses, and validates a configuration file. When path is
// empty the default location is used; a missing file yields defaults.
func Load(path string) (*Config, string, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, "", err
		}
		resolved = defaultPath
	} else {
		expanded, err := expandPath(resolved)
		if err != nil {
			return nil, "", err
		}
		resolved = expanded
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply when no config file exists.
	default:
		return nil, resolved, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, resolved, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

// Sample returns the embedded sample configuration file contents.
func Sample() string {
	return sampleConfig
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "casefile.db")
}

// GateLockPath returns the lock file guarding the auto-confirm batch.
func (c *Config) GateLockPath() string {
	return filepath.Join(c.Paths.DataDir, "autoconfirm.lock")
}

// EnsureDirectories creates the directories the engine writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Linking.SweepBatchSize <= 0 {
		c.Linking.SweepBatchSize = defaultSweepBatchSize
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
