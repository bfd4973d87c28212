package confirm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/flock"

	"casefile/internal/confirm"
	"casefile/internal/faults"
	"casefile/internal/store"
	"casefile/internal/testsupport"
)

func threshold(v float64) *float64 {
	return &v
}

func newGate(t *testing.T) (*confirm.Gate, *store.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	gate := confirm.NewGate(st, cfg.GateLockPath(), confirm.Thresholds{
		AutoConfirm:   cfg.Gate.AutoConfirmThreshold,
		LowConfidence: cfg.Gate.LowConfidenceThreshold,
	}, nil)
	return gate, st, cfg.GateLockPath()
}

func TestAutoConfirmThresholdIsInclusive(t *testing.T) {
	gate, st, _ := newGate(t)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-1", map[string]any{"x": 1})
	boundary := testsupport.SeedLink(t, st, artifact.ID, "project", "apollo", store.MethodParticipants, 0.85)
	nearMiss := testsupport.SeedLink(t, st, artifact.ID, "client", "clientco", store.MethodNaming, 0.84)

	report, err := gate.AutoConfirm(ctx, confirm.Options{})
	if err != nil {
		t.Fatalf("AutoConfirm failed: %v", err)
	}
	if report.Threshold != 0.85 {
		t.Fatalf("expected configured default threshold, got %v", report.Threshold)
	}
	if report.Total != 1 {
		t.Fatalf("expected exactly the boundary link promoted, got %d", report.Total)
	}

	promoted, err := st.GetLink(ctx, boundary.ID)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if promoted.Status != store.LinkConfirmed || promoted.ConfirmedBy != "system" {
		t.Fatalf("expected system-confirmed link, got %#v", promoted)
	}

	skipped, err := st.GetLink(ctx, nearMiss.ID)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if skipped.Status != store.LinkProposed {
		t.Fatalf("expected near-miss link untouched, got %s", skipped.Status)
	}
}

func TestAutoConfirmDryRunMutatesNothing(t *testing.T) {
	gate, st, _ := newGate(t)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-dry", map[string]any{"x": 1})
	link := testsupport.SeedLink(t, st, artifact.ID, "project", "apollo", store.MethodHeaders, 0.95)

	dry, err := gate.AutoConfirm(ctx, confirm.Options{DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if dry.Total != 1 || !dry.DryRun {
		t.Fatalf("unexpected dry-run report: %#v", dry)
	}

	unchanged, err := st.GetLink(ctx, link.ID)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if unchanged.Status != store.LinkProposed {
		t.Fatalf("expected dry run to leave link proposed, got %s", unchanged.Status)
	}

	// The real run promotes exactly what the dry run predicted.
	real, err := gate.AutoConfirm(ctx, confirm.Options{})
	if err != nil {
		t.Fatalf("AutoConfirm failed: %v", err)
	}
	if real.Total != dry.Total {
		t.Fatalf("expected real run to match dry-run count %d, got %d", dry.Total, real.Total)
	}
}

func TestAutoConfirmIsIdempotent(t *testing.T) {
	gate, st, _ := newGate(t)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-idem", map[string]any{"x": 1})
	testsupport.SeedLink(t, st, artifact.ID, "project", "apollo", store.MethodHeaders, 0.95)

	first, err := gate.AutoConfirm(ctx, confirm.Options{})
	if err != nil {
		t.Fatalf("AutoConfirm failed: %v", err)
	}
	if first.Total != 1 {
		t.Fatalf("expected one promotion, got %d", first.Total)
	}

	second, err := gate.AutoConfirm(ctx, confirm.Options{})
	if err != nil {
		t.Fatalf("second AutoConfirm failed: %v", err)
	}
	if second.Total != 0 {
		t.Fatalf("expected second run to promote nothing, got %d", second.Total)
	}
}

func TestAutoConfirmRejectsBadThreshold(t *testing.T) {
	gate, _, _ := newGate(t)

	_, err := gate.AutoConfirm(context.Background(), confirm.Options{Threshold: threshold(1.2)})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = gate.AutoConfirm(context.Background(), confirm.Options{Threshold: threshold(-0.2)})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAutoConfirmExplicitZeroPromotesEverything(t *testing.T) {
	gate, st, _ := newGate(t)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-zero", map[string]any{"x": 1})
	weak := testsupport.SeedLink(t, st, artifact.ID, "project", "apollo", store.MethodNaming, 0.10)

	report, err := gate.AutoConfirm(ctx, confirm.Options{Threshold: threshold(0)})
	if err != nil {
		t.Fatalf("AutoConfirm failed: %v", err)
	}
	if report.Threshold != 0 {
		t.Fatalf("expected explicit zero threshold honored, got %v", report.Threshold)
	}
	if report.Total != 1 {
		t.Fatalf("expected the weak link promoted at threshold 0, got %d", report.Total)
	}

	promoted, err := st.GetLink(ctx, weak.ID)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if promoted.Status != store.LinkConfirmed {
		t.Fatalf("expected link confirmed, got %s", promoted.Status)
	}
}

func TestAutoConfirmRefusesWhenLockHeld(t *testing.T) {
	gate, _, lockPath := newGate(t)

	other := flock.New(lockPath)
	locked, err := other.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !locked {
		t.Fatal("expected to acquire the lock")
	}
	defer func() { _ = other.Unlock() }()

	_, err = gate.AutoConfirm(context.Background(), confirm.Options{})
	if !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("expected conflict while lock is held, got %v", err)
	}
}

func TestFlagLowConfidenceUsesDefaultsAndOrdering(t *testing.T) {
	gate, st, _ := newGate(t)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-flag", map[string]any{"x": 1})
	testsupport.SeedLink(t, st, artifact.ID, "project", "apollo", store.MethodNaming, 0.45)
	testsupport.SeedLink(t, st, artifact.ID, "client", "clientco", store.MethodRules, 0.20)
	testsupport.SeedLink(t, st, artifact.ID, "project", "borealis", store.MethodHeaders, 0.95)

	weak, err := gate.FlagLowConfidence(ctx, nil, 0)
	if err != nil {
		t.Fatalf("FlagLowConfidence failed: %v", err)
	}
	if len(weak) != 2 {
		t.Fatalf("expected two weak links under the default threshold, got %d", len(weak))
	}
	if weak[0].Confidence != 0.20 {
		t.Fatalf("expected weakest first, got %v", weak[0].Confidence)
	}
}

func TestConfirmAndRejectLink(t *testing.T) {
	gate, st, _ := newGate(t)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-decide", map[string]any{"x": 1})
	keep := testsupport.SeedLink(t, st, artifact.ID, "project", "apollo", store.MethodNaming, 0.60)
	drop := testsupport.SeedLink(t, st, artifact.ID, "client", "clientco", store.MethodNaming, 0.60)

	if err := gate.ConfirmLink(ctx, keep.ID, "reviewer"); err != nil {
		t.Fatalf("ConfirmLink failed: %v", err)
	}
	if err := gate.RejectLink(ctx, drop.ID, "reviewer"); err != nil {
		t.Fatalf("RejectLink failed: %v", err)
	}

	confirmed, err := st.GetLink(ctx, keep.ID)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if confirmed.Status != store.LinkConfirmed || confirmed.ConfirmedBy != "reviewer" {
		t.Fatalf("unexpected confirmed link: %#v", confirmed)
	}

	rejected, err := st.GetLink(ctx, drop.ID)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if rejected.Status != store.LinkRejected {
		t.Fatalf("unexpected rejected link: %#v", rejected)
	}

	// Terminal links never flip.
	if err := gate.RejectLink(ctx, keep.ID, "reviewer"); !errors.Is(err, faults.ErrConflict) {
		t.Fatalf("expected conflict re-deciding confirmed link, got %v", err)
	}

	// Auto-confirm skips everything already decided.
	report, err := gate.AutoConfirm(ctx, confirm.Options{Threshold: threshold(0.5)})
	if err != nil {
		t.Fatalf("AutoConfirm failed: %v", err)
	}
	if report.Total != 0 {
		t.Fatalf("expected no proposed links left, got %d", report.Total)
	}
}

func TestConfirmationReport(t *testing.T) {
	gate, st, _ := newGate(t)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-report", map[string]any{"x": 1})
	testsupport.SeedLink(t, st, artifact.ID, "project", "apollo", store.MethodHeaders, 0.95)
	testsupport.SeedLink(t, st, artifact.ID, "client", "clientco", store.MethodNaming, 0.60)
	weak := testsupport.SeedLink(t, st, artifact.ID, "project", "borealis", store.MethodRules, 0.30)
	if err := gate.RejectLink(ctx, weak.ID, "reviewer"); err != nil {
		t.Fatalf("RejectLink failed: %v", err)
	}

	report, err := gate.ConfirmationReport(ctx)
	if err != nil {
		t.Fatalf("ConfirmationReport failed: %v", err)
	}
	if report.StatusCounts[store.LinkProposed] != 2 || report.StatusCounts[store.LinkRejected] != 1 {
		t.Fatalf("unexpected status counts: %#v", report.StatusCounts)
	}
	if len(report.MethodStats) == 0 {
		t.Fatal("expected method statistics")
	}
	if report.Histogram.AtLeast90 != 1 {
		t.Fatalf("expected one proposed link at >=0.90, got %#v", report.Histogram)
	}
	if report.Histogram.From50 != 1 {
		t.Fatalf("expected one proposed link in the 0.50 bucket, got %#v", report.Histogram)
	}
}
