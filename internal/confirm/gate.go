// Package confirm is the confidence gate: it promotes sufficiently
// confident proposed links to confirmed and surfaces weak ones for manual
// triage. The gate is strictly additive and idempotent; links that reached
// a terminal status are never re-evaluated.
package confirm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"casefile/internal/faults"
	"casefile/internal/logging"
	"casefile/internal/store"
)

// Gate applies confidence thresholds to proposed entity links.
type Gate struct {
	store    *store.Store
	lockPath string
	defaults Thresholds
	logger   *slog.Logger
}

// Thresholds carries the configured gate defaults.
type Thresholds struct {
	AutoConfirm   float64
	LowConfidence float64
}

// NewGate constructs a Gate. lockPath guards non-dry-run batch runs so two
// confirmer jobs never interleave.
func NewGate(st *store.Store, lockPath string, defaults Thresholds, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{
		store:    st,
		lockPath: lockPath,
		defaults: defaults,
		logger:   logger.With(logging.String(logging.FieldComponent, "confirm")),
	}
}

// Options controls one auto-confirm run.
type Options struct {
	// Threshold is inclusive; nil falls back to the configured default.
	// An explicit 0 promotes every proposed link.
	Threshold *float64
	// DryRun reports the would-be promotions with zero mutation.
	DryRun bool
}

// AutoConfirmReport summarizes one auto-confirm run.
type AutoConfirmReport struct {
	Threshold float64             `json:"threshold"`
	DryRun    bool                `json:"dry_run"`
	Total     int                 `json:"total"`
	PerMethod []store.MethodCount `json:"per_method,omitempty"`
}

// AutoConfirm promotes proposed links with confidence at or above the
// threshold to confirmed (confirmed_by=system). The selection and mutation
// happen in one transaction, so links proposed mid-run are never
// half-processed. Dry-run mode reports the would-be count and per-method
// breakdown without mutating anything.
func (g *Gate) AutoConfirm(ctx context.Context, opts Options) (AutoConfirmReport, error) {
	threshold := g.defaults.AutoConfirm
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return AutoConfirmReport{}, faults.Wrap(faults.ErrValidation, "confirm", "auto confirm",
			fmt.Sprintf("threshold %.2f outside [0,1]", threshold), nil)
	}

	report := AutoConfirmReport{Threshold: threshold, DryRun: opts.DryRun}

	if opts.DryRun {
		counts, total, err := g.store.CountConfirmable(ctx, threshold)
		if err != nil {
			return AutoConfirmReport{}, err
		}
		report.PerMethod = counts
		report.Total = total
		return report, nil
	}

	if g.lockPath != "" {
		lock := flock.New(g.lockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return AutoConfirmReport{}, fmt.Errorf("acquire confirm lock: %w", err)
		}
		if !locked {
			return AutoConfirmReport{}, faults.Wrap(faults.ErrConflict, "confirm", "auto confirm",
				"another auto-confirm run holds the lock", nil)
		}
		defer func() { _ = lock.Unlock() }()
	}

	counts, total, err := g.store.ConfirmAboveThreshold(ctx, threshold)
	if err != nil {
		return AutoConfirmReport{}, err
	}
	report.PerMethod = counts
	report.Total = total

	g.logger.Info("links auto-confirmed",
		logging.Float64("threshold", threshold),
		logging.Int("confirmed", total),
	)
	return report, nil
}

// FlagLowConfidence returns proposed links below the threshold, weakest
// first, for manual triage. A nil threshold falls back to the configured
// default; limit caps the result set.
func (g *Gate) FlagLowConfidence(ctx context.Context, threshold *float64, limit int) ([]*store.Link, error) {
	value := g.defaults.LowConfidence
	if threshold != nil {
		value = *threshold
	}
	if value < 0 || value > 1 {
		return nil, faults.Wrap(faults.ErrValidation, "confirm", "flag low confidence",
			fmt.Sprintf("threshold %.2f outside [0,1]", value), nil)
	}
	if limit <= 0 {
		limit = 50
	}
	return g.store.LowConfidenceLinks(ctx, value, limit)
}

// Report aggregates link confirmation state for operators.
type Report struct {
	StatusCounts map[store.LinkStatus]int  `json:"status_counts"`
	MethodStats  []store.MethodStat        `json:"method_stats"`
	Histogram    store.ConfidenceHistogram `json:"proposed_histogram"`
}

// ConfirmationReport returns the status distribution, per-method confidence
// statistics, and the confidence-bucket histogram over proposed links.
func (g *Gate) ConfirmationReport(ctx context.Context) (Report, error) {
	statusCounts, err := g.store.LinkStatusCounts(ctx)
	if err != nil {
		return Report{}, err
	}
	methodStats, err := g.store.MethodStats(ctx)
	if err != nil {
		return Report{}, err
	}
	histogram, err := g.store.ProposedHistogram(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{
		StatusCounts: statusCounts,
		MethodStats:  methodStats,
		Histogram:    histogram,
	}, nil
}

// ConfirmLink applies an explicit human confirmation to a proposed link.
func (g *Gate) ConfirmLink(ctx context.Context, linkID int64, actor string) error {
	if err := g.store.DecideLink(ctx, linkID, store.LinkConfirmed, actor); err != nil {
		return err
	}
	g.logger.Info("link confirmed manually",
		logging.Int64(logging.FieldLinkID, linkID),
		logging.String("actor", actor),
	)
	return nil
}

// RejectLink applies an explicit human rejection to a proposed link.
func (g *Gate) RejectLink(ctx context.Context, linkID int64, actor string) error {
	if err := g.store.DecideLink(ctx, linkID, store.LinkRejected, actor); err != nil {
		return err
	}
	g.logger.Info("link rejected manually",
		logging.Int64(logging.FieldLinkID, linkID),
		logging.String("actor", actor),
	)
	return nil
}
