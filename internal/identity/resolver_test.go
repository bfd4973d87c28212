package identity_test

import (
	"context"
	"errors"
	"testing"

	"casefile/internal/faults"
	"casefile/internal/identity"
	"casefile/internal/store"
	"casefile/internal/testsupport"
)

func newResolver(t *testing.T) (*identity.Resolver, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return identity.NewResolver(st, nil), st
}

func TestResolveUnboundWithoutCreateReturnsNil(t *testing.T) {
	resolver, _ := newResolver(t)

	profile, err := resolver.Resolve(context.Background(), identity.ClaimEmail, "nobody@corp.example", identity.ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil profile for unbound identifier, got %#v", profile)
	}
}

func TestResolveCreatesAndReusesProfile(t *testing.T) {
	resolver, st := newResolver(t)
	ctx := context.Background()

	created, err := resolver.Resolve(ctx, identity.ClaimEmail, "Jane Doe <Jane@Corp.Example>", identity.ResolveOptions{
		CreateIfMissing: true,
		Source:          "mail",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if created == nil {
		t.Fatal("expected a created profile")
	}
	if created.Kind != store.ProfilePerson {
		t.Fatalf("expected person profile, got %s", created.Kind)
	}
	if created.CanonicalValue != "jane@corp.example" {
		t.Fatalf("unexpected canonical value: %q", created.CanonicalValue)
	}
	if created.Domain != "corp.example" {
		t.Fatalf("expected domain derived from email, got %q", created.Domain)
	}
	if created.DisplayName != "Jane Doe" {
		t.Fatalf("expected display name from the address, got %q", created.DisplayName)
	}

	// A differently formatted observation of the same identifier lands on
	// the same profile.
	again, err := resolver.Resolve(ctx, identity.ClaimEmail, "JANE@corp.example", identity.ResolveOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if again == nil || again.ID != created.ID {
		t.Fatalf("expected resolution to the existing profile, got %#v", again)
	}

	claims, err := st.ClaimsByProfile(ctx, created.ID)
	if err != nil {
		t.Fatalf("ClaimsByProfile failed: %v", err)
	}
	if len(claims) != 1 {
		t.Fatalf("expected a single claim, got %d", len(claims))
	}
	if claims[0].Confidence != 1.0 {
		t.Fatalf("expected directly observed claim at full confidence, got %v", claims[0].Confidence)
	}
}

func TestResolveDomainCreatesOrganization(t *testing.T) {
	resolver, _ := newResolver(t)

	profile, err := resolver.Resolve(context.Background(), identity.ClaimDomain, "ClientCo.Example", identity.ResolveOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if profile.Kind != store.ProfileOrganization {
		t.Fatalf("expected organization profile for a domain claim, got %s", profile.Kind)
	}
	if profile.Domain != "clientco.example" {
		t.Fatalf("unexpected domain: %q", profile.Domain)
	}
}

func TestResolveRejectsEmptyIdentifier(t *testing.T) {
	resolver, _ := newResolver(t)

	_, err := resolver.Resolve(context.Background(), identity.ClaimEmail, "   ", identity.ResolveOptions{CreateIfMissing: true})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = resolver.Resolve(context.Background(), "", "jane@corp.example", identity.ResolveOptions{})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error for empty claim type, got %v", err)
	}
}

func TestMergeSplitRoundTripWithHistory(t *testing.T) {
	resolver, st := newResolver(t)
	ctx := context.Background()

	work, err := resolver.Resolve(ctx, identity.ClaimEmail, "jane@corp.example", identity.ResolveOptions{CreateIfMissing: true, Source: "mail"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	personal, err := resolver.Resolve(ctx, identity.ClaimEmail, "jane@home.example", identity.ResolveOptions{CreateIfMissing: true, Source: "mail"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	op, err := resolver.Merge(ctx, []string{personal.ID}, work.ID, "same person", nil, "reviewer")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	// Both identifiers now resolve to the survivor.
	resolved, err := resolver.Resolve(ctx, identity.ClaimEmail, "jane@home.example", identity.ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve after merge failed: %v", err)
	}
	if resolved == nil || resolved.ID != work.ID {
		t.Fatalf("expected merged identifier to resolve to survivor, got %#v", resolved)
	}

	claims, err := st.ClaimsByProfile(ctx, work.ID)
	if err != nil {
		t.Fatalf("ClaimsByProfile failed: %v", err)
	}
	var personalClaimID int64
	for _, claim := range claims {
		if claim.NormalizedValue == "jane@home.example" {
			personalClaimID = claim.ID
		}
	}
	if personalClaimID == 0 {
		t.Fatal("expected the personal claim on the survivor")
	}

	// The merge turns out wrong; split the claim back off.
	newProfile, splitOp, err := resolver.Split(ctx, work.ID, []int64{personalClaimID}, "different people after all", "reviewer")
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if newProfile.ID == work.ID {
		t.Fatal("expected split to create a distinct profile")
	}

	resolved, err = resolver.Resolve(ctx, identity.ClaimEmail, "jane@home.example", identity.ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve after split failed: %v", err)
	}
	if resolved == nil || resolved.ID != newProfile.ID {
		t.Fatalf("expected split identifier on the new profile, got %#v", resolved)
	}

	history, err := resolver.History(ctx, work.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	var sawMerge, sawSplit bool
	for _, h := range history {
		switch h.ID {
		case op.ID:
			sawMerge = true
		case splitOp.ID:
			sawSplit = true
		}
	}
	if !sawMerge || !sawSplit {
		t.Fatalf("expected merge and split in history, got %#v", history)
	}
}

func TestDeactivateRetiresProfile(t *testing.T) {
	resolver, st := newResolver(t)
	ctx := context.Background()

	profile, err := resolver.Resolve(ctx, identity.ClaimEmail, "gone@corp.example", identity.ResolveOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if _, err := resolver.Deactivate(ctx, profile.ID, "left the company", "reviewer"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	deactivated, err := st.GetProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if deactivated.Status != store.ProfileInactive {
		t.Fatalf("expected inactive profile, got %s", deactivated.Status)
	}

	// The retired claim no longer resolves.
	resolved, err := resolver.Resolve(ctx, identity.ClaimEmail, "gone@corp.example", identity.ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve after deactivate failed: %v", err)
	}
	if resolved != nil {
		t.Fatalf("expected retired claim to be unbound, got %#v", resolved)
	}

	// A fresh observation of the identifier provisions a new profile
	// instead of resurrecting the retired one.
	fresh, err := resolver.Resolve(ctx, identity.ClaimEmail, "gone@corp.example", identity.ResolveOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("re-resolve after deactivate failed: %v", err)
	}
	if fresh == nil || fresh.ID == profile.ID {
		t.Fatalf("expected a new profile, got %#v", fresh)
	}
}
