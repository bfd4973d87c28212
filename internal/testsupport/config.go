package testsupport

import (
	"path/filepath"
	"testing"

	"casefile/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithEntities sets the known-entity catalog on a test config.
func WithEntities(entities ...config.Entity) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Linking.Entities = append(cfg.Linking.Entities, entities...)
	}
}

// WithRules sets allow-list rules on a test config.
func WithRules(rules ...config.Rule) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Linking.Rules = append(cfg.Linking.Rules, rules...)
	}
}
