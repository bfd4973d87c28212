package excerpt_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"casefile/internal/excerpt"
	"casefile/internal/faults"
	"casefile/internal/testsupport"
)

func TestCreateStoresBoundedHashedText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	extractor := excerpt.NewExtractor(st, 10, nil)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "msg-1", map[string]any{"body": "hello"})

	long := strings.Repeat("abcde", 10)
	id, err := extractor.Create(ctx, artifact.ID, "char_range", 0, 50, long)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	stored, err := st.ExcerptsByArtifact(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("ExcerptsByArtifact failed: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != id {
		t.Fatalf("expected the stored excerpt, got %#v", stored)
	}
	if got := len([]rune(stored[0].Text)); got != 10 {
		t.Fatalf("expected text bounded to 10 runes, got %d", got)
	}

	// The hash covers the stored (truncated) text, not the input.
	sum := sha256.Sum256([]byte(stored[0].Text))
	if stored[0].TextHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("text hash does not match stored text")
	}
}

func TestCreateValidatesAnchor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	extractor := excerpt.NewExtractor(st, 100, nil)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "msg-1", map[string]any{"body": "hello"})

	if _, err := extractor.Create(ctx, artifact.ID, "", 0, 5, "x"); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error for empty anchor type, got %v", err)
	}
	if _, err := extractor.Create(ctx, artifact.ID, "char_range", 5, 2, "x"); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error for inverted span, got %v", err)
	}
	if _, err := extractor.Create(ctx, artifact.ID, "char_range", -1, 2, "x"); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error for negative start, got %v", err)
	}
}

func TestCreateRequiresArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	extractor := excerpt.NewExtractor(st, 100, nil)

	_, err := extractor.Create(context.Background(), 12345, "char_range", 0, 5, "orphan")
	if !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("expected not-found for missing artifact, got %v", err)
	}
}

func TestRepeatedQuotationsAllowed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	extractor := excerpt.NewExtractor(st, 100, nil)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "msg-1", map[string]any{"body": "hello"})

	if _, err := extractor.Create(ctx, artifact.ID, "char_range", 0, 5, "hello"); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := extractor.Create(ctx, artifact.ID, "char_range", 0, 5, "hello"); err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	stored, err := st.ExcerptsByArtifact(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("ExcerptsByArtifact failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected both excerpts stored, got %d", len(stored))
	}
}

func TestTruncate(t *testing.T) {
	if got := excerpt.Truncate("héllo wörld", 5); got != "héllo" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
	if got := excerpt.Truncate("short", 10); got != "short" {
		t.Fatalf("expected short text untouched, got %q", got)
	}
	if got := excerpt.Truncate("anything", 0); got != "" {
		t.Fatalf("expected empty for non-positive max, got %q", got)
	}
}
