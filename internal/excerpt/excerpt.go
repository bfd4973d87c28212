// Package excerpt derives anchored, bounded-length proof snippets from
// artifact payloads for display and audit.
package excerpt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"casefile/internal/faults"
	"casefile/internal/logging"
	"casefile/internal/store"
)

// Extractor stores excerpts with a bounded text length so large payloads
// cannot balloon excerpt storage.
type Extractor struct {
	store     *store.Store
	maxLength int
	logger    *slog.Logger
}

// NewExtractor constructs an Extractor. maxLength bounds stored text in
// runes; non-positive values fall back to 500.
func NewExtractor(st *store.Store, maxLength int, logger *slog.Logger) *Extractor {
	if maxLength <= 0 {
		maxLength = 500
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		store:     st,
		maxLength: maxLength,
		logger:    logger.With(logging.String(logging.FieldComponent, "excerpt")),
	}
}

// Create stores one anchored excerpt for an artifact. Text is normalized
// and truncated before hashing so the stored hash always matches the stored
// text. Repeated quotations within one artifact are legitimate; no
// uniqueness is enforced over excerpt hashes.
func (e *Extractor) Create(ctx context.Context, artifactID int64, anchorType string, anchorStart, anchorEnd int, text string) (int64, error) {
	if strings.TrimSpace(anchorType) == "" {
		return 0, faults.Wrap(faults.ErrValidation, "excerpt", "create", "anchor type is required", nil)
	}
	if anchorStart < 0 || anchorEnd < anchorStart {
		return 0, faults.Wrap(faults.ErrValidation, "excerpt", "create",
			fmt.Sprintf("invalid anchor span [%d, %d)", anchorStart, anchorEnd), nil)
	}

	artifact, err := e.store.GetArtifact(ctx, artifactID)
	if err != nil {
		return 0, err
	}
	if artifact == nil {
		return 0, faults.Wrap(faults.ErrNotFound, "excerpt", "create", fmt.Sprintf("artifact %d", artifactID), nil)
	}

	bounded := Truncate(norm.NFC.String(text), e.maxLength)
	sum := sha256.Sum256([]byte(bounded))

	id, err := e.store.InsertExcerpt(ctx, &store.Excerpt{
		ArtifactID:  artifactID,
		AnchorType:  anchorType,
		AnchorStart: anchorStart,
		AnchorEnd:   anchorEnd,
		Text:        bounded,
		TextHash:    hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return 0, err
	}
	e.logger.Debug("excerpt stored",
		logging.Int64(logging.FieldArtifactID, artifactID),
		logging.Int64("excerpt_id", id),
		logging.Int("text_runes", len([]rune(bounded))),
	)
	return id, nil
}

// Truncate bounds text to max runes without splitting a rune.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
