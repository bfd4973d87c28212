package store

import (
	"context"
	"fmt"
	"time"
)

// InsertExcerpt stores one anchored excerpt for an artifact. Duplicate text
// hashes within an artifact are legitimate (repeated quotations).
func (s *Store) InsertExcerpt(ctx context.Context, excerpt *Excerpt) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifact_excerpts (
            artifact_id, anchor_type, anchor_start, anchor_end,
            text, text_hash, redacted, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		excerpt.ArtifactID,
		excerpt.AnchorType,
		excerpt.AnchorStart,
		excerpt.AnchorEnd,
		excerpt.Text,
		excerpt.TextHash,
		boolToInt(excerpt.Redacted),
		formatTime(time.Now()),
	)
	if err != nil {
		return 0, classifyDBError("insert excerpt", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	excerpt.ID = id
	return id, nil
}

// ExcerptsByArtifact returns an artifact's excerpts in creation order.
func (s *Store) ExcerptsByArtifact(ctx context.Context, artifactID int64) ([]*Excerpt, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, artifact_id, anchor_type, anchor_start, anchor_end, text, text_hash, redacted, created_at
         FROM artifact_excerpts WHERE artifact_id = ? ORDER BY id`,
		artifactID,
	)
	if err != nil {
		return nil, fmt.Errorf("query excerpts: %w", err)
	}
	defer rows.Close()

	var excerpts []*Excerpt
	for rows.Next() {
		var (
			excerpt    Excerpt
			redacted   int
			createdRaw string
		)
		if err := rows.Scan(
			&excerpt.ID,
			&excerpt.ArtifactID,
			&excerpt.AnchorType,
			&excerpt.AnchorStart,
			&excerpt.AnchorEnd,
			&excerpt.Text,
			&excerpt.TextHash,
			&redacted,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		excerpt.Redacted = redacted != 0
		if created, err := parseTimeString(createdRaw); err == nil {
			excerpt.CreatedAt = created
		}
		excerpts = append(excerpts, &excerpt)
	}
	return excerpts, rows.Err()
}
