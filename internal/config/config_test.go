package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"casefile/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Gate.AutoConfirmThreshold != 0.85 {
		t.Fatalf("unexpected auto-confirm default: %v", cfg.Gate.AutoConfirmThreshold)
	}
	if cfg.Gate.LowConfidenceThreshold != 0.50 {
		t.Fatalf("unexpected low-confidence default: %v", cfg.Gate.LowConfidenceThreshold)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	cfg, resolved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Excerpt.MaxLength != config.Default().Excerpt.MaxLength {
		t.Fatalf("expected default excerpt length, got %d", cfg.Excerpt.MaxLength)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[gate]
auto_confirm_threshold = 0.9
low_confidence_threshold = 0.4

[[linking.entities]]
type = "project"
id = "atlas"
name = "Atlas"
aliases = ["atlas rollout"]
domains = ["atlas.example"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gate.AutoConfirmThreshold != 0.9 {
		t.Fatalf("expected threshold override, got %v", cfg.Gate.AutoConfirmThreshold)
	}
	if len(cfg.Linking.Entities) != 1 || cfg.Linking.Entities[0].ID != "atlas" {
		t.Fatalf("unexpected entities: %#v", cfg.Linking.Entities)
	}
	if cfg.Linking.SweepBatchSize <= 0 {
		t.Fatal("expected sweep batch size to be defaulted")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			"threshold above one",
			func(c *config.Config) { c.Gate.AutoConfirmThreshold = 1.5 },
			"auto_confirm_threshold",
		},
		{
			"negative low threshold",
			func(c *config.Config) { c.Gate.LowConfidenceThreshold = -0.1 },
			"low_confidence_threshold",
		},
		{
			"low above auto",
			func(c *config.Config) {
				c.Gate.AutoConfirmThreshold = 0.5
				c.Gate.LowConfidenceThreshold = 0.8
			},
			"must not exceed",
		},
		{
			"zero excerpt length",
			func(c *config.Config) { c.Excerpt.MaxLength = 0 },
			"excerpt.max_length",
		},
		{
			"entity without name",
			func(c *config.Config) {
				c.Linking.Entities = []config.Entity{{Type: "project", ID: "x"}}
			},
			"name must be set",
		},
		{
			"rule confidence out of range",
			func(c *config.Config) {
				c.Linking.Rules = []config.Rule{{Match: "tok", EntityType: "project", EntityID: "x", Confidence: 2}}
			},
			"confidence must be between",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(config.Sample()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}
