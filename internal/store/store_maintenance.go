package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// LedgerStats aggregates row counts for diagnostic output.
type LedgerStats struct {
	Artifacts      int                   `json:"artifacts"`
	Blobs          int                   `json:"blobs"`
	Excerpts       int                   `json:"excerpts"`
	Profiles       map[ProfileStatus]int `json:"profiles"`
	Links          map[LinkStatus]int    `json:"links"`
	OpenFixItems   int                   `json:"open_fix_items"`
	PendingLinking int                   `json:"pending_linking"`
}

// Stats returns a count summary across the ledger tables.
func (s *Store) Stats(ctx context.Context) (LedgerStats, error) {
	stats := LedgerStats{
		Profiles: make(map[ProfileStatus]int),
		Links:    make(map[LinkStatus]int),
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(1) FROM artifacts`, &stats.Artifacts},
		{`SELECT COUNT(1) FROM artifact_blobs`, &stats.Blobs},
		{`SELECT COUNT(1) FROM artifact_excerpts`, &stats.Excerpts},
		{`SELECT COUNT(1) FROM fix_queue WHERE status = 'open'`, &stats.OpenFixItems},
		{`SELECT COUNT(1) FROM artifacts WHERE linked_at IS NULL OR needs_relink = 1`, &stats.PendingLinking},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return stats, fmt.Errorf("ledger stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM identity_profiles GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("profile stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status ProfileStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Profiles[status] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	linkCounts, err := s.LinkStatusCounts(ctx)
	if err != nil {
		return stats, err
	}
	stats.Links = linkCounts
	return stats, nil
}

// DatabaseHealth reports diagnostic information about the ledger database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	TablesPresent    []string `json:"tables_present,omitempty"`
	MissingTables    []string `json:"missing_tables,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	Error            string   `json:"error,omitempty"`
}

// CheckHealth returns diagnostic information about the ledger database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("ledger database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat ledger database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("ledger database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("ledger database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping ledger database: %w", err)
	}
	health.DatabaseReadable = true

	expected := []string{
		"artifacts",
		"artifact_blobs",
		"artifact_excerpts",
		"identity_profiles",
		"identity_claims",
		"identity_operations",
		"entity_links",
		"fix_queue",
	}
	missing := make(map[string]struct{}, len(expected))
	for _, table := range expected {
		missing[table] = struct{}{}
	}

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("scan table info: %w", err)
		}
		if _, ok := missing[name]; ok {
			health.TablesPresent = append(health.TablesPresent, name)
			delete(missing, name)
		}
	}
	if err := rows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate table info: %w", err)
	}
	for table := range missing {
		health.MissingTables = append(health.MissingTables, table)
	}

	var integrityResult string
	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
