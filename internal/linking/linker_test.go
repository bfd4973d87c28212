package linking_test

import (
	"context"
	"testing"

	"casefile/internal/config"
	"casefile/internal/identity"
	"casefile/internal/ingest"
	"casefile/internal/linking"
	"casefile/internal/store"
	"casefile/internal/testsupport"
)

func catalogEntities() []config.Entity {
	return []config.Entity{
		{
			Type:    "project",
			ID:      "apollo",
			Name:    "Project Apollo",
			Aliases: []string{"apollo"},
		},
		{
			Type:    "client",
			ID:      "clientco",
			Name:    "ClientCo",
			Domains: []string{"clientco.example"},
		},
	}
}

func newLinker(t *testing.T, opts ...testsupport.ConfigOption) (*linking.Linker, *store.Store, *config.Config) {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithEntities(catalogEntities()...)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	return linking.NewLinker(st, cfg.Linking, nil), st, cfg
}

func findCandidate(candidates []linking.Candidate, entityID string, method store.MatchMethod) *linking.Candidate {
	for i := range candidates {
		if candidates[i].EntityID == entityID && candidates[i].Method == method {
			return &candidates[i]
		}
	}
	return nil
}

func TestProposeHeaderMatch(t *testing.T) {
	linker, st, _ := newLinker(t)
	artifact := testsupport.SeedArtifact(t, st, "tracker", "t-1", map[string]any{
		"project_id": "Apollo",
		"body":       "status update",
	})

	candidates, err := linker.Propose(context.Background(), artifact.ID)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	match := findCandidate(candidates, "apollo", store.MethodHeaders)
	if match == nil {
		t.Fatalf("expected header match, got %#v", candidates)
	}
	if match.Confidence != 0.95 {
		t.Fatalf("expected header confidence 0.95, got %v", match.Confidence)
	}
}

func TestProposeNamingBracketOutranksKeyword(t *testing.T) {
	linker, st, _ := newLinker(t)

	bracketed := testsupport.SeedArtifact(t, st, "mail", "m-1", map[string]any{
		"subject": "[Project Apollo] weekly sync",
	})
	keyword := testsupport.SeedArtifact(t, st, "mail", "m-2", map[string]any{
		"subject": "notes about apollo milestones",
	})

	ctx := context.Background()
	candidates, err := linker.Propose(ctx, bracketed.ID)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	match := findCandidate(candidates, "apollo", store.MethodNaming)
	if match == nil || match.Confidence != 0.80 {
		t.Fatalf("expected bracketed naming match at 0.80, got %#v", candidates)
	}

	candidates, err = linker.Propose(ctx, keyword.ID)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	match = findCandidate(candidates, "apollo", store.MethodNaming)
	if match == nil || match.Confidence != 0.60 {
		t.Fatalf("expected keyword naming match at 0.60, got %#v", candidates)
	}
}

func TestProposeParticipantDomainMatch(t *testing.T) {
	linker, st, _ := newLinker(t)
	ctx := context.Background()

	resolver := identity.NewResolver(st, nil)
	actor, err := resolver.Resolve(ctx, identity.ClaimEmail, "pat@clientco.example", identity.ResolveOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-1", map[string]any{"body": "invoice attached"})
	if err := st.SetArtifactActor(ctx, artifact.ID, actor.ID); err != nil {
		t.Fatalf("SetArtifactActor failed: %v", err)
	}

	candidates, err := linker.Propose(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	match := findCandidate(candidates, "clientco", store.MethodParticipants)
	if match == nil || match.Confidence != 0.85 {
		t.Fatalf("expected participant match at 0.85, got %#v", candidates)
	}
}

func TestProposeAmbiguousDomainGoesToFixQueue(t *testing.T) {
	shared := config.Entity{
		Type:    "client",
		ID:      "subsidiary",
		Name:    "Subsidiary",
		Domains: []string{"clientco.example"},
	}
	linker, st, _ := newLinker(t, testsupport.WithEntities(shared))
	ctx := context.Background()

	resolver := identity.NewResolver(st, nil)
	actor, err := resolver.Resolve(ctx, identity.ClaimEmail, "pat@clientco.example", identity.ResolveOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	artifact := testsupport.SeedArtifact(t, st, "mail", "m-amb", map[string]any{"body": "hello"})
	if err := st.SetArtifactActor(ctx, artifact.ID, actor.ID); err != nil {
		t.Fatalf("SetArtifactActor failed: %v", err)
	}

	candidates, err := linker.Propose(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if match := findCandidate(candidates, "clientco", store.MethodParticipants); match != nil {
		t.Fatalf("expected no participant guess for ambiguous domain, got %#v", match)
	}

	open, err := st.OpenFixItems(ctx, 10)
	if err != nil {
		t.Fatalf("OpenFixItems failed: %v", err)
	}
	if len(open) != 1 || open[0].Kind != store.FixAmbiguousLink {
		t.Fatalf("expected an ambiguous-link fix item, got %#v", open)
	}
	if open[0].ArtifactID != artifact.ID {
		t.Fatalf("expected fix item bound to artifact %d, got %d", artifact.ID, open[0].ArtifactID)
	}
}

func TestProposeRuleMatch(t *testing.T) {
	rule := config.Rule{Match: "INV-", EntityType: "client", EntityID: "clientco", Confidence: 0.90}
	linker, st, _ := newLinker(t, testsupport.WithRules(rule))

	artifact := testsupport.SeedArtifact(t, st, "billing", "b-1", map[string]any{
		"subject": "INV-2041 payment due",
	})

	candidates, err := linker.Propose(context.Background(), artifact.ID)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	match := findCandidate(candidates, "clientco", store.MethodRules)
	if match == nil || match.Confidence != 0.90 {
		t.Fatalf("expected rule match at 0.90, got %#v", candidates)
	}
}

func TestProposeAllowsMultipleEntities(t *testing.T) {
	linker, st, _ := newLinker(t)
	artifact := testsupport.SeedArtifact(t, st, "mail", "m-multi", map[string]any{
		"subject": "[Project Apollo] work for ClientCo",
	})

	candidates, err := linker.Propose(context.Background(), artifact.ID)
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if findCandidate(candidates, "apollo", store.MethodNaming) == nil {
		t.Fatalf("expected apollo naming match, got %#v", candidates)
	}
	if findCandidate(candidates, "clientco", store.MethodNaming) == nil {
		t.Fatalf("expected clientco naming match, got %#v", candidates)
	}
}

func TestLinkArtifactPersistsAndStampsPass(t *testing.T) {
	linker, st, _ := newLinker(t)
	ctx := context.Background()

	artifact := testsupport.SeedArtifact(t, st, "mail", "m-save", map[string]any{
		"subject": "[Project Apollo] launch",
	})

	inserted, err := linker.LinkArtifact(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("LinkArtifact failed: %v", err)
	}
	if inserted == 0 {
		t.Fatal("expected at least one link persisted")
	}

	links, err := st.LinksByArtifact(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("LinksByArtifact failed: %v", err)
	}
	if len(links) != inserted {
		t.Fatalf("expected %d stored links, got %d", inserted, len(links))
	}
	for _, link := range links {
		if link.Status != store.LinkProposed {
			t.Fatalf("expected proposed links, got %s", link.Status)
		}
		if len(link.Reasons) == 0 {
			t.Fatal("expected match reasons recorded on the link")
		}
	}

	pending, err := st.ArtifactsForLinking(ctx, 10)
	if err != nil {
		t.Fatalf("ArtifactsForLinking failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected linking backlog drained, got %#v", pending)
	}

	// A second pass over the same artifact inserts nothing new.
	again, err := linker.LinkArtifact(ctx, artifact.ID)
	if err != nil {
		t.Fatalf("second LinkArtifact failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected no new links on re-run, got %d", again)
	}
}

func TestSweepProcessesBacklog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEntities(catalogEntities()...))
	st := testsupport.MustOpenStore(t, cfg)
	linker := linking.NewLinker(st, cfg.Linking, nil)
	gateway := ingest.NewGateway(st, identity.NewResolver(st, nil), nil)
	ctx := context.Background()

	for _, ev := range []ingest.Event{
		testsupport.NewEvent(t, "mail", "s-1", map[string]any{"subject": "[Project Apollo] one"}),
		testsupport.NewEvent(t, "mail", "s-2", map[string]any{"subject": "plain note"}),
		testsupport.NewEvent(t, "mail", "s-3", map[string]any{"subject": "apollo retro"}),
	} {
		if _, err := gateway.AcceptEvent(ctx, ev); err != nil {
			t.Fatalf("AcceptEvent failed: %v", err)
		}
	}

	summary, err := linker.Sweep(ctx, 10)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if summary.Attempted != 3 || summary.Succeeded != 3 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if summary.Proposed != 2 {
		t.Fatalf("expected two proposed links across the batch, got %d", summary.Proposed)
	}

	// Every artifact is stamped, including the one with no matches.
	pending, err := st.ArtifactsForLinking(ctx, 10)
	if err != nil {
		t.Fatalf("ArtifactsForLinking failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog after sweep, got %d", len(pending))
	}

	// A follow-up sweep has nothing to do.
	summary, err = linker.Sweep(ctx, 10)
	if err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if summary.Attempted != 0 {
		t.Fatalf("expected idle sweep, got %#v", summary)
	}
}
