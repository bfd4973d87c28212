package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"casefile/internal/faults"
)

// InsertFixItem enqueues a manual-review item.
func (s *Store) InsertFixItem(ctx context.Context, item *FixItem) (int64, error) {
	if item == nil {
		return 0, errors.New("fix item is nil")
	}
	var artifactID any
	if item.ArtifactID != 0 {
		artifactID = item.ArtifactID
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO fix_queue (kind, artifact_id, claim_type, raw_value, detail, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Kind,
		artifactID,
		nullableString(item.ClaimType),
		nullableString(item.RawValue),
		item.Detail,
		FixOpen,
		formatTime(time.Now()),
	)
	if err != nil {
		return 0, classifyDBError("insert fix item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	item.ID = id
	item.Status = FixOpen
	return id, nil
}

// OpenFixItems returns open items oldest first.
func (s *Store) OpenFixItems(ctx context.Context, limit int) ([]*FixItem, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+fixColumns+` FROM fix_queue WHERE status = ? ORDER BY id LIMIT ?`,
		FixOpen,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query open fix items: %w", err)
	}
	defer rows.Close()

	var items []*FixItem
	for rows.Next() {
		item, err := scanFixItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ResolveFixItem closes an open item with the external actor's resolution.
func (s *Store) ResolveFixItem(ctx context.Context, id int64, resolution, actor string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE fix_queue SET status = ?, resolution = ?, resolved_by = ?, resolved_at = ?
         WHERE id = ? AND status = ?`,
		FixResolved,
		resolution,
		actorOrSystem(actor),
		formatTime(time.Now()),
		id,
		FixOpen,
	)
	if err != nil {
		return classifyDBError("resolve fix item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM fix_queue WHERE id = ?`, id)
	var count int
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("check fix item: %w", err)
	}
	if count == 0 {
		return faults.Wrap(faults.ErrNotFound, "store", "resolve fix item", fmt.Sprintf("item %d", id), nil)
	}
	return faults.Wrap(faults.ErrConflict, "store", "resolve fix item", fmt.Sprintf("item %d already resolved", id), nil)
}

const fixColumns = "id, kind, artifact_id, claim_type, raw_value, detail, status, resolution, resolved_by, resolved_at, created_at"

func scanFixItem(scanner interface{ Scan(dest ...any) error }) (*FixItem, error) {
	var (
		item        FixItem
		artifactID  sql.NullInt64
		claimType   sql.NullString
		rawValue    sql.NullString
		resolution  sql.NullString
		resolvedBy  sql.NullString
		resolvedRaw sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(
		&item.ID,
		&item.Kind,
		&artifactID,
		&claimType,
		&rawValue,
		&item.Detail,
		&item.Status,
		&resolution,
		&resolvedBy,
		&resolvedRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	item.ArtifactID = artifactID.Int64
	item.ClaimType = claimType.String
	item.RawValue = rawValue.String
	item.Resolution = resolution.String
	item.ResolvedBy = resolvedBy.String
	if resolvedRaw.Valid {
		if resolved, err := parseTimeString(resolvedRaw.String); err == nil {
			item.ResolvedAt = &resolved
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	return &item, nil
}
