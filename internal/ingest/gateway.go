package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casefile/internal/faults"
	"casefile/internal/identity"
	"casefile/internal/logging"
	"casefile/internal/store"
)

// ActorRef identifies the event's acting party by a raw external
// identifier, resolved to a profile during ingest.
type ActorRef struct {
	ClaimType string `json:"claim_type"`
	Value     string `json:"value"`
}

// Event is the normalized shape producers hand to the gateway. Source
// adapters own the translation from native payloads.
type Event struct {
	Source     string          `json:"source"`
	SourceID   string          `json:"source_id"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
	ActorRef   *ActorRef       `json:"actor_ref,omitempty"`
	Visibility []string        `json:"visibility,omitempty"`
}

// Result reports how the gateway disposed of an event.
type Result struct {
	Status     store.IngestStatus `json:"status"`
	ArtifactID int64              `json:"artifact_id"`
}

// Gateway accepts producer events and persists them as artifacts.
type Gateway struct {
	store    *store.Store
	resolver *identity.Resolver
	logger   *slog.Logger
}

// NewGateway constructs a Gateway over the shared store.
func NewGateway(st *store.Store, resolver *identity.Resolver, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gateway{
		store:    st,
		resolver: resolver,
		logger:   logger.With(logging.String(logging.FieldComponent, "ingest")),
	}
}

// AcceptEvent validates, deduplicates, and persists one event.
//
// No existing (source, source_id): a new artifact is created. An existing
// row with the same content hash is a replay and becomes a no-op. An
// existing row with a different hash means the upstream payload was
// revised: the payload pointer is overwritten in place and the artifact is
// flagged for re-extraction and re-linking. A unique-key race between
// concurrent producers is recovered locally as the unchanged/updated path.
func (g *Gateway) AcceptEvent(ctx context.Context, event Event) (Result, error) {
	if err := validateEvent(event); err != nil {
		return Result{}, err
	}
	ctx = logging.WithSource(ctx, event.Source)
	logger := logging.WithContext(ctx, g.logger)

	canonical, contentHash, err := CanonicalPayload(event.Payload)
	if err != nil {
		return Result{}, faults.Wrap(faults.ErrValidation, "ingest", "accept event", "", err)
	}

	actorProfileID := g.resolveActor(ctx, logger, event)

	if err := g.store.PutBlob(ctx, contentHash, canonical, store.RetentionStandard); err != nil {
		return Result{}, err
	}

	artifact := &store.Artifact{
		Source:         event.Source,
		SourceID:       event.SourceID,
		Kind:           event.Kind,
		OccurredAt:     event.OccurredAt,
		ActorProfileID: actorProfileID,
		ContentHash:    contentHash,
		Visibility:     event.Visibility,
	}
	inserted, err := g.store.InsertArtifact(ctx, artifact)
	if err != nil {
		return Result{}, err
	}
	if inserted {
		logger.Info("artifact created",
			logging.Int64(logging.FieldArtifactID, artifact.ID),
			logging.String("source_id", event.SourceID),
			logging.String("content_hash", contentHash),
		)
		return Result{Status: store.IngestCreated, ArtifactID: artifact.ID}, nil
	}

	// Another producer holds the slot; fall back to the replay/revision path.
	existing, err := g.store.FindArtifactBySource(ctx, event.Source, event.SourceID)
	if err != nil {
		return Result{}, err
	}
	if existing == nil {
		return Result{}, fmt.Errorf("ingest: artifact slot (%s, %s) vanished after insert conflict", event.Source, event.SourceID)
	}

	if existing.ContentHash == contentHash {
		logger.Debug("artifact replay ignored",
			logging.Int64(logging.FieldArtifactID, existing.ID),
			logging.String("content_hash", contentHash),
		)
		return Result{Status: store.IngestUnchanged, ArtifactID: existing.ID}, nil
	}

	if err := g.store.ReplaceArtifactPayload(ctx, existing.ID, contentHash, event.OccurredAt); err != nil {
		return Result{}, err
	}
	logger.Info("artifact payload revised",
		logging.Int64(logging.FieldArtifactID, existing.ID),
		logging.String("previous_hash", existing.ContentHash),
		logging.String("content_hash", contentHash),
	)
	return Result{Status: store.IngestUpdated, ArtifactID: existing.ID}, nil
}

// resolveActor resolves the event's acting party. Resolution failures are
// recorded on the fix queue and logged, never propagated: one unresolvable
// actor must not abort an ingestion batch.
func (g *Gateway) resolveActor(ctx context.Context, logger *slog.Logger, event Event) string {
	if event.ActorRef == nil {
		return ""
	}
	profile, err := g.resolver.Resolve(ctx, event.ActorRef.ClaimType, event.ActorRef.Value, identity.ResolveOptions{
		CreateIfMissing: true,
		Source:          event.Source,
	})
	if err != nil {
		logger.Warn("actor resolution failed",
			logging.String("claim_type", event.ActorRef.ClaimType),
			logging.Error(err),
		)
		if _, fixErr := g.store.InsertFixItem(ctx, &store.FixItem{
			Kind:      store.FixUnresolvedIdentity,
			ClaimType: event.ActorRef.ClaimType,
			RawValue:  event.ActorRef.Value,
			Detail:    fmt.Sprintf("actor resolution failed for %s event %s: %v", event.Source, event.SourceID, err),
		}); fixErr != nil {
			logger.Error("enqueue fix item failed", logging.Error(fixErr))
		}
		return ""
	}
	if profile == nil {
		return ""
	}
	return profile.ID
}

func validateEvent(event Event) error {
	var missing []string
	if strings.TrimSpace(event.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(event.SourceID) == "" {
		missing = append(missing, "source_id")
	}
	if strings.TrimSpace(event.Kind) == "" {
		missing = append(missing, "kind")
	}
	if event.OccurredAt.IsZero() {
		missing = append(missing, "occurred_at")
	}
	if len(missing) > 0 {
		return faults.Wrap(faults.ErrValidation, "ingest", "accept event",
			"missing required fields: "+strings.Join(missing, ", "), nil)
	}
	if len(event.Payload) == 0 {
		return faults.Wrap(faults.ErrValidation, "ingest", "accept event", "payload is empty", nil)
	}
	return nil
}
