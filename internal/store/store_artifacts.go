package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"casefile/internal/faults"
)

// PutBlob stores a content-addressed payload, ignoring duplicates. Blobs are
// immutable: an existing hash is never rewritten.
func (s *Store) PutBlob(ctx context.Context, contentHash string, payload []byte, retentionClass string) error {
	if retentionClass == "" {
		retentionClass = RetentionStandard
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifact_blobs (content_hash, payload, size_bytes, retention_class, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (content_hash) DO NOTHING`,
		contentHash,
		payload,
		len(payload),
		retentionClass,
		formatTime(time.Now()),
	)
	if err != nil {
		return classifyDBError("put blob", err)
	}
	return nil
}

// GetBlob fetches a payload by content hash.
func (s *Store) GetBlob(ctx context.Context, contentHash string) (*Blob, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT content_hash, payload, size_bytes, retention_class, created_at
         FROM artifact_blobs WHERE content_hash = ?`,
		contentHash,
	)
	var (
		blob       Blob
		createdRaw string
	)
	err := row.Scan(&blob.ContentHash, &blob.Payload, &blob.SizeBytes, &blob.RetentionClass, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, faults.Wrap(faults.ErrNotFound, "store", "get blob", contentHash, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		blob.CreatedAt = created
	}
	return &blob, nil
}

// InsertArtifact attempts to insert a new artifact row. It reports false
// when another producer already holds the (source, source_id) slot; callers
// then re-read and take the unchanged/updated path.
func (s *Store) InsertArtifact(ctx context.Context, artifact *Artifact) (bool, error) {
	if artifact == nil {
		return false, errors.New("artifact is nil")
	}
	now := time.Now().UTC()
	visibility, err := marshalJSONColumn(artifact.Visibility)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifacts (
            source, source_id, kind, occurred_at, actor_profile_id,
            content_hash, visibility, needs_relink, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT (source, source_id) DO NOTHING`,
		artifact.Source,
		artifact.SourceID,
		artifact.Kind,
		formatTime(artifact.OccurredAt),
		nullableString(artifact.ActorProfileID),
		artifact.ContentHash,
		visibility,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return false, classifyDBError("insert artifact", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	artifact.ID = id
	artifact.CreatedAt = now
	artifact.UpdatedAt = now
	return true, nil
}

// GetArtifact fetches an artifact by identifier.
func (s *Store) GetArtifact(ctx context.Context, id int64) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, nil
}

// FindArtifactBySource fetches the artifact occupying a (source, source_id)
// slot, or nil when the slot is free.
func (s *Store) FindArtifactBySource(ctx context.Context, source, sourceID string) (*Artifact, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE source = ? AND source_id = ?`,
		source,
		sourceID,
	)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find artifact by source: %w", err)
	}
	return artifact, nil
}

// ReplaceArtifactPayload swaps the payload pointer for a revised upstream
// event and marks the artifact for re-extraction and re-linking. Prior
// excerpts and links are left in place.
func (s *Store) ReplaceArtifactPayload(ctx context.Context, id int64, contentHash string, occurredAt time.Time) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE artifacts
         SET content_hash = ?, occurred_at = ?, needs_relink = 1, updated_at = ?
         WHERE id = ?`,
		contentHash,
		formatTime(occurredAt),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return classifyDBError("replace artifact payload", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return faults.Wrap(faults.ErrNotFound, "store", "replace artifact payload", fmt.Sprintf("artifact %d", id), nil)
	}
	return nil
}

// SetArtifactActor records the resolved actor profile on an artifact.
func (s *Store) SetArtifactActor(ctx context.Context, id int64, profileID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE artifacts SET actor_profile_id = ?, updated_at = ? WHERE id = ?`,
		nullableString(profileID),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return classifyDBError("set artifact actor", err)
	}
	return nil
}

// ArtifactsForLinking returns artifacts never linked or flagged for
// re-linking, oldest first, for the decoupled linking sweep.
func (s *Store) ArtifactsForLinking(ctx context.Context, limit int) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+artifactColumns+` FROM artifacts
         WHERE linked_at IS NULL OR needs_relink = 1
         ORDER BY id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts for linking: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}

// MarkArtifactLinked stamps a completed linking pass on an artifact.
func (s *Store) MarkArtifactLinked(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE artifacts SET linked_at = ?, needs_relink = 0, updated_at = ? WHERE id = ?`,
		formatTime(now),
		formatTime(now),
		id,
	)
	if err != nil {
		return classifyDBError("mark artifact linked", err)
	}
	return nil
}

const artifactColumns = "id, source, source_id, kind, occurred_at, actor_profile_id, content_hash, visibility, needs_relink, linked_at, created_at, updated_at"

func scanArtifact(scanner interface{ Scan(dest ...any) error }) (*Artifact, error) {
	var (
		id          int64
		source      string
		sourceID    string
		kind        string
		occurredRaw string
		actor       sql.NullString
		contentHash string
		visibility  sql.NullString
		needsRelink int
		linkedRaw   sql.NullString
		createdRaw  string
		updatedRaw  string
	)

	if err := scanner.Scan(
		&id,
		&source,
		&sourceID,
		&kind,
		&occurredRaw,
		&actor,
		&contentHash,
		&visibility,
		&needsRelink,
		&linkedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	artifact := &Artifact{
		ID:             id,
		Source:         source,
		SourceID:       sourceID,
		Kind:           kind,
		ActorProfileID: actor.String,
		ContentHash:    contentHash,
		Visibility:     unmarshalStringList(visibility),
		NeedsRelink:    needsRelink != 0,
	}
	if occurred, err := parseTimeString(occurredRaw); err == nil {
		artifact.OccurredAt = occurred
	}
	if linkedRaw.Valid {
		if linked, err := parseTimeString(linkedRaw.String); err == nil {
			artifact.LinkedAt = &linked
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		artifact.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		artifact.UpdatedAt = updated
	}
	return artifact, nil
}
