package testsupport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"casefile/internal/config"
	"casefile/internal/ingest"
	"casefile/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewEvent builds a normalized producer event with a JSON object payload.
func NewEvent(t testing.TB, source, sourceID string, payload map[string]any) ingest.Event {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return ingest.Event{
		Source:     source,
		SourceID:   sourceID,
		Kind:       "message",
		OccurredAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Payload:    data,
	}
}

// SeedArtifact inserts a blob and artifact directly, bypassing the gateway,
// for tests that exercise downstream components in isolation.
func SeedArtifact(t testing.TB, st *store.Store, source, sourceID string, payload map[string]any) *store.Artifact {
	t.Helper()

	ctx := context.Background()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	canonical, hash, err := ingest.CanonicalPayload(data)
	if err != nil {
		t.Fatalf("canonicalize payload: %v", err)
	}
	if err := st.PutBlob(ctx, hash, canonical, store.RetentionStandard); err != nil {
		t.Fatalf("put blob: %v", err)
	}

	artifact := &store.Artifact{
		Source:      source,
		SourceID:    sourceID,
		Kind:        "message",
		OccurredAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		ContentHash: hash,
	}
	inserted, err := st.InsertArtifact(ctx, artifact)
	if err != nil {
		t.Fatalf("insert artifact: %v", err)
	}
	if !inserted {
		t.Fatalf("artifact (%s, %s) already present", source, sourceID)
	}
	return artifact
}

// SeedLink inserts one entity link directly for gate tests.
func SeedLink(t testing.TB, st *store.Store, artifactID int64, entityType, entityID string, method store.MatchMethod, confidence float64) *store.Link {
	t.Helper()

	link := &store.Link{
		ArtifactID: artifactID,
		EntityType: entityType,
		EntityID:   entityID,
		Method:     method,
		Confidence: confidence,
	}
	inserted, err := st.InsertLink(context.Background(), link, false)
	if err != nil {
		t.Fatalf("insert link: %v", err)
	}
	if !inserted {
		t.Fatalf("link tuple already present for artifact %d", artifactID)
	}
	return link
}
