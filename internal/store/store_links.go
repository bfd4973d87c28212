package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"casefile/internal/faults"
)

// InsertLink proposes (or, with autoConfirm, directly confirms) one entity
// link. It reports false without error when the exact
// (artifact, entity_type, entity_id, method) tuple already exists.
func (s *Store) InsertLink(ctx context.Context, link *Link, autoConfirm bool) (bool, error) {
	if link == nil {
		return false, errors.New("link is nil")
	}
	if link.Confidence < 0 || link.Confidence > 1 {
		return false, faults.Wrap(faults.ErrValidation, "store", "insert link",
			fmt.Sprintf("confidence %.2f outside [0,1]", link.Confidence), nil)
	}

	now := time.Now().UTC()
	status := LinkProposed
	var confirmedBy any
	var confirmedAt any
	if autoConfirm {
		status = LinkConfirmed
		confirmedBy = "system"
		confirmedAt = formatTime(now)
	}

	reasons, err := marshalJSONColumn(link.Reasons)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO entity_links (
            artifact_id, entity_type, entity_id, method, confidence,
            reasons, status, confirmed_by, confirmed_at, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (artifact_id, entity_type, entity_id, method) DO NOTHING`,
		link.ArtifactID,
		link.EntityType,
		link.EntityID,
		link.Method,
		link.Confidence,
		reasons,
		status,
		confirmedBy,
		confirmedAt,
		formatTime(now),
	)
	if err != nil {
		return false, classifyDBError("insert link", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		link.ID = id
	}
	link.Status = status
	link.CreatedAt = now
	return true, nil
}

// GetLink fetches a link by identifier.
func (s *Store) GetLink(ctx context.Context, id int64) (*Link, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM entity_links WHERE id = ?`, id)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

// DecideLink applies a manual terminal transition to a proposed link.
// Confirmed and rejected links are never re-decided.
func (s *Store) DecideLink(ctx context.Context, id int64, decision LinkStatus, actor string) error {
	if decision != LinkConfirmed && decision != LinkRejected {
		return faults.Wrap(faults.ErrValidation, "store", "decide link", fmt.Sprintf("invalid decision %q", decision), nil)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE entity_links SET status = ?, confirmed_by = ?, confirmed_at = ? WHERE id = ? AND status = ?`,
		decision,
		actorOrSystem(actor),
		formatTime(time.Now()),
		id,
		LinkProposed,
	)
	if err != nil {
		return classifyDBError("decide link", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	existing, err := s.GetLink(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return faults.Wrap(faults.ErrNotFound, "store", "decide link", fmt.Sprintf("link %d", id), nil)
	}
	return faults.Wrap(faults.ErrConflict, "store", "decide link", fmt.Sprintf("link %d already %s", id, existing.Status), nil)
}

// MethodCount pairs a matching method with a row count.
type MethodCount struct {
	Method MatchMethod `json:"method"`
	Count  int         `json:"count"`
}

// CountConfirmable reports how many proposed links sit at or above the
// threshold, broken down by method. Used for dry-run reporting.
func (s *Store) CountConfirmable(ctx context.Context, threshold float64) ([]MethodCount, int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT method, COUNT(1) FROM entity_links
         WHERE status = ? AND confidence >= ?
         GROUP BY method ORDER BY method`,
		LinkProposed,
		threshold,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("count confirmable: %w", err)
	}
	defer rows.Close()

	var (
		counts []MethodCount
		total  int
	)
	for rows.Next() {
		var mc MethodCount
		if err := rows.Scan(&mc.Method, &mc.Count); err != nil {
			return nil, 0, err
		}
		counts = append(counts, mc)
		total += mc.Count
	}
	return counts, total, rows.Err()
}

// ConfirmAboveThreshold promotes every proposed link at or above the
// threshold to confirmed in one transaction, returning the per-method
// breakdown of the rows it promoted. Links proposed mid-run are either
// fully processed or untouched; terminal rows are never re-evaluated.
func (s *Store) ConfirmAboveThreshold(ctx context.Context, threshold float64) ([]MethodCount, int, error) {
	var (
		counts []MethodCount
		total  int
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(
			ctx,
			`SELECT method, COUNT(1) FROM entity_links
             WHERE status = ? AND confidence >= ?
             GROUP BY method ORDER BY method`,
			LinkProposed,
			threshold,
		)
		if err != nil {
			return fmt.Errorf("count confirmable: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var mc MethodCount
			if err := rows.Scan(&mc.Method, &mc.Count); err != nil {
				return err
			}
			counts = append(counts, mc)
			total += mc.Count
		}
		if err := rows.Err(); err != nil {
			return err
		}

		res, err := tx.ExecContext(
			ctx,
			`UPDATE entity_links
             SET status = ?, confirmed_by = 'system', confirmed_at = ?
             WHERE status = ? AND confidence >= ?`,
			LinkConfirmed,
			formatTime(time.Now()),
			LinkProposed,
			threshold,
		)
		if err != nil {
			return classifyDBError("confirm above threshold", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if int(affected) != total {
			return fmt.Errorf("confirm above threshold: breakdown counted %d rows but %d were promoted", total, affected)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return counts, total, nil
}

// LowConfidenceLinks returns proposed links below the threshold, weakest
// first, for manual triage.
func (s *Store) LowConfidenceLinks(ctx context.Context, threshold float64, limit int) ([]*Link, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+linkColumns+` FROM entity_links
         WHERE status = ? AND confidence < ?
         ORDER BY confidence, id LIMIT ?`,
		LinkProposed,
		threshold,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query low confidence links: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

// LinksByArtifact returns every link proposed or decided for an artifact.
func (s *Store) LinksByArtifact(ctx context.Context, artifactID int64) ([]*Link, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+linkColumns+` FROM entity_links WHERE artifact_id = ? ORDER BY id`,
		artifactID,
	)
	if err != nil {
		return nil, fmt.Errorf("query links by artifact: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

// ConfirmedLinksByEntity returns confirmed links targeting one entity, for
// the read-only consumer interface.
func (s *Store) ConfirmedLinksByEntity(ctx context.Context, entityType, entityID string) ([]*Link, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+linkColumns+` FROM entity_links
         WHERE entity_type = ? AND entity_id = ? AND status = ?
         ORDER BY id`,
		entityType,
		entityID,
		LinkConfirmed,
	)
	if err != nil {
		return nil, fmt.Errorf("query confirmed links: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

// LinkStatusCounts returns the link population grouped by status.
func (s *Store) LinkStatusCounts(ctx context.Context) (map[LinkStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM entity_links GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("link status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[LinkStatus]int)
	for rows.Next() {
		var status LinkStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// MethodStat aggregates confidence statistics for one matching method.
type MethodStat struct {
	Method MatchMethod `json:"method"`
	Count  int         `json:"count"`
	Mean   float64     `json:"mean"`
	Min    float64     `json:"min"`
	Max    float64     `json:"max"`
}

// MethodStats returns per-method confidence statistics across all links.
func (s *Store) MethodStats(ctx context.Context) ([]MethodStat, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT method, COUNT(1), AVG(confidence), MIN(confidence), MAX(confidence)
         FROM entity_links GROUP BY method ORDER BY method`,
	)
	if err != nil {
		return nil, fmt.Errorf("method stats: %w", err)
	}
	defer rows.Close()

	var stats []MethodStat
	for rows.Next() {
		var stat MethodStat
		if err := rows.Scan(&stat.Method, &stat.Count, &stat.Mean, &stat.Min, &stat.Max); err != nil {
			return nil, err
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// ConfidenceHistogram buckets proposed links by confidence band.
type ConfidenceHistogram struct {
	AtLeast90 int `json:"at_least_90"`
	From80    int `json:"from_80"`
	From70    int `json:"from_70"`
	From50    int `json:"from_50"`
	Below50   int `json:"below_50"`
}

// ProposedHistogram returns the confidence-bucket histogram over proposed
// links.
func (s *Store) ProposedHistogram(ctx context.Context) (ConfidenceHistogram, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT
            COALESCE(SUM(CASE WHEN confidence >= 0.90 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN confidence >= 0.80 AND confidence < 0.90 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN confidence >= 0.70 AND confidence < 0.80 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN confidence >= 0.50 AND confidence < 0.70 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN confidence < 0.50 THEN 1 ELSE 0 END), 0)
         FROM entity_links WHERE status = ?`,
		LinkProposed,
	)
	var histogram ConfidenceHistogram
	if err := row.Scan(
		&histogram.AtLeast90,
		&histogram.From80,
		&histogram.From70,
		&histogram.From50,
		&histogram.Below50,
	); err != nil {
		return ConfidenceHistogram{}, fmt.Errorf("proposed histogram: %w", err)
	}
	return histogram, nil
}

func collectLinks(rows *sql.Rows) ([]*Link, error) {
	var links []*Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

const linkColumns = "id, artifact_id, entity_type, entity_id, method, confidence, reasons, status, confirmed_by, confirmed_at, created_at"

func scanLink(scanner interface{ Scan(dest ...any) error }) (*Link, error) {
	var (
		link         Link
		reasons      sql.NullString
		confirmedBy  sql.NullString
		confirmedRaw sql.NullString
		createdRaw   string
	)
	if err := scanner.Scan(
		&link.ID,
		&link.ArtifactID,
		&link.EntityType,
		&link.EntityID,
		&link.Method,
		&link.Confidence,
		&reasons,
		&link.Status,
		&confirmedBy,
		&confirmedRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	link.Reasons = unmarshalStringList(reasons)
	link.ConfirmedBy = confirmedBy.String
	if confirmedRaw.Valid {
		if confirmed, err := parseTimeString(confirmedRaw.String); err == nil {
			link.ConfirmedAt = &confirmed
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		link.CreatedAt = created
	}
	return &link, nil
}
