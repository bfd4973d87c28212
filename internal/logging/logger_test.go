package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"casefile/internal/logging"
	"casefile/internal/testsupport"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")

	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("hello", logging.String("key", "value"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"key":"value"`) {
		t.Fatalf("expected structured field in output, got %s", data)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigCreatesLogDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if logger == nil {
		t.Fatal("expected a logger")
	}
	if _, err := os.Stat(cfg.Paths.LogDir); err != nil {
		t.Fatalf("expected log directory created: %v", err)
	}
}

func TestWithContextAttachesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := logging.WithSource(logging.WithArtifactID(context.Background(), 42), "mail")
	logging.WithContext(ctx, logger).Info("linked")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"artifact_id":42`) || !strings.Contains(out, `"source":"mail"`) {
		t.Fatalf("expected context fields in output, got %s", out)
	}
}
