package linking

import (
	"context"
	"fmt"
	"log/slog"

	"casefile/internal/config"
	"casefile/internal/faults"
	"casefile/internal/logging"
	"casefile/internal/store"
)

// Linker runs the strategy table over artifacts and persists the resulting
// link proposals.
type Linker struct {
	store      *store.Store
	catalog    config.Linking
	strategies []strategy
	logger     *slog.Logger
}

// NewLinker constructs a Linker over the shared store and the configured
// known-entity catalog.
func NewLinker(st *store.Store, catalog config.Linking, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Linker{
		store:      st,
		catalog:    catalog,
		strategies: strategyTable(),
		logger:     logger.With(logging.String(logging.FieldComponent, "linking")),
	}
}

// Propose runs every strategy over one artifact and returns the deduplicated
// candidate set. Ambiguous participant matches are enqueued on the fix
// queue rather than guessed.
func (l *Linker) Propose(ctx context.Context, artifactID int64) ([]Candidate, error) {
	artifact, err := l.store.GetArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, faults.Wrap(faults.ErrNotFound, "linking", "propose", fmt.Sprintf("artifact %d", artifactID), nil)
	}

	blob, err := l.store.GetBlob(ctx, artifact.ContentHash)
	if err != nil {
		return nil, err
	}

	var actor *store.Profile
	if artifact.ActorProfileID != "" {
		if actor, err = l.store.GetProfile(ctx, artifact.ActorProfileID); err != nil {
			return nil, err
		}
	}

	mc := newMatchContext(artifact, blob.Payload, actor, l.catalog)
	logger := logging.WithContext(logging.WithArtifactID(ctx, artifact.ID), l.logger)

	seen := make(map[string]int)
	var candidates []Candidate
	for _, strat := range l.strategies {
		produced := strat.match(mc)
		for _, candidate := range produced {
			key := candidate.EntityType + "\x00" + candidate.EntityID + "\x00" + string(candidate.Method)
			if idx, ok := seen[key]; ok {
				// The same tuple from one strategy keeps its strongest score.
				if candidate.Confidence > candidates[idx].Confidence {
					candidates[idx] = candidate
				}
				continue
			}
			seen[key] = len(candidates)
			candidates = append(candidates, candidate)
		}
		logger.Info("link strategy evaluation",
			logging.String(logging.FieldEventType, "decision_summary"),
			logging.String(logging.FieldDecisionType, "link_strategy"),
			logging.String("strategy", string(strat.method)),
			logging.Int("candidates", len(produced)),
		)
	}

	for _, ambiguity := range mc.ambiguities {
		if _, err := l.store.InsertFixItem(ctx, &store.FixItem{
			Kind:       store.FixAmbiguousLink,
			ArtifactID: artifact.ID,
			Detail:     ambiguity,
		}); err != nil {
			return nil, err
		}
		logger.Warn("ambiguous link flagged for review", logging.String("detail", ambiguity))
	}

	return candidates, nil
}

// SaveLinks persists candidates as proposed links (confirmed when
// autoConfirm is set), skipping tuples that already exist, then stamps the
// artifact's linking pass.
func (l *Linker) SaveLinks(ctx context.Context, artifactID int64, candidates []Candidate, autoConfirm bool) (int, error) {
	inserted := 0
	for _, candidate := range candidates {
		link := &store.Link{
			ArtifactID: artifactID,
			EntityType: candidate.EntityType,
			EntityID:   candidate.EntityID,
			Method:     candidate.Method,
			Confidence: candidate.Confidence,
			Reasons:    candidate.Reasons,
		}
		ok, err := l.store.InsertLink(ctx, link, autoConfirm)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	if err := l.store.MarkArtifactLinked(ctx, artifactID); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// LinkArtifact proposes and persists links for one artifact.
func (l *Linker) LinkArtifact(ctx context.Context, artifactID int64) (int, error) {
	candidates, err := l.Propose(ctx, artifactID)
	if err != nil {
		return 0, err
	}
	return l.SaveLinks(ctx, artifactID, candidates, false)
}

// ItemError records one failed item inside a batch summary.
type ItemError struct {
	ArtifactID int64  `json:"artifact_id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// Summary reports a batch outcome without aborting on the first bad item,
// preserving per-item error detail for retry.
type Summary struct {
	Attempted int         `json:"attempted"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Proposed  int         `json:"proposed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// Sweep links artifacts that were never linked or are flagged for
// re-linking. It is the decoupled alternative to inline per-ingest linking
// for backfill-scale volume.
func (l *Linker) Sweep(ctx context.Context, limit int) (Summary, error) {
	if limit <= 0 {
		limit = l.catalog.SweepBatchSize
	}
	artifacts, err := l.store.ArtifactsForLinking(ctx, limit)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Attempted: len(artifacts)}
	for _, artifact := range artifacts {
		inserted, err := l.LinkArtifact(ctx, artifact.ID)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, ItemError{
				ArtifactID: artifact.ID,
				Kind:       faults.Kind(err),
				Message:    err.Error(),
			})
			continue
		}
		summary.Succeeded++
		summary.Proposed += inserted
	}

	l.logger.Info("linking sweep finished",
		logging.Int("attempted", summary.Attempted),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("proposed", summary.Proposed),
	)
	return summary, nil
}
