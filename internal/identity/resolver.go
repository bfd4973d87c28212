package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"casefile/internal/faults"
	"casefile/internal/logging"
	"casefile/internal/store"
)

// Resolver maps raw external identifiers to canonical identity profiles.
type Resolver struct {
	store  *store.Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver backed by the shared store.
func NewResolver(st *store.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{store: st, logger: logger.With(logging.String(logging.FieldComponent, "identity"))}
}

// ResolveOptions controls identifier resolution behavior.
type ResolveOptions struct {
	// CreateIfMissing creates a new active profile and claim when the
	// identifier is unbound.
	CreateIfMissing bool
	// Source records which system observed the identifier.
	Source string
}

// Resolve looks up the active claim for a normalized identifier and returns
// its profile. An unbound identifier with creation disabled resolves to
// (nil, nil) rather than an error so one unresolved actor never aborts an
// ingestion batch.
func (r *Resolver) Resolve(ctx context.Context, claimType, rawValue string, opts ResolveOptions) (*store.Profile, error) {
	if strings.TrimSpace(claimType) == "" {
		return nil, faults.Wrap(faults.ErrValidation, "identity", "resolve", "claim type is required", nil)
	}
	normalized := Normalize(claimType, rawValue)
	if normalized == "" {
		return nil, faults.Wrap(faults.ErrValidation, "identity", "resolve", "identifier is empty after normalization", nil)
	}

	claim, err := r.store.FindActiveClaim(ctx, claimType, normalized)
	if err != nil {
		return nil, err
	}
	if claim != nil {
		profile, err := r.store.GetProfile(ctx, claim.ProfileID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, fmt.Errorf("identity: claim %d references missing profile %s", claim.ID, claim.ProfileID)
		}
		return profile, nil
	}

	if !opts.CreateIfMissing {
		return nil, nil
	}

	profile := newProfileForClaim(claimType, normalized, rawValue)
	newClaim := &store.Claim{
		Type:            claimType,
		RawValue:        strings.TrimSpace(rawValue),
		NormalizedValue: normalized,
		// Directly observed identifiers bind at full confidence.
		Confidence: 1.0,
		Source:     opts.Source,
	}

	if _, err := r.store.CreateProfileWithClaim(ctx, profile, newClaim, opts.Source); err != nil {
		// A concurrent creator may have bound the claim first; the unique
		// index picked the winner, so adopt its profile.
		if errors.Is(err, faults.ErrConstraint) {
			existing, lookupErr := r.store.FindActiveClaim(ctx, claimType, normalized)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return r.store.GetProfile(ctx, existing.ProfileID)
			}
		}
		return nil, err
	}

	r.logger.Info("identity profile created",
		logging.String(logging.FieldProfileID, profile.ID),
		logging.String("claim_type", claimType),
		logging.String(logging.FieldSource, opts.Source),
	)
	return profile, nil
}

// Merge reassigns every claim owned by the source profiles to the target,
// marks the sources merged, and writes exactly one audit operation. The
// store transaction guarantees no partial merge is ever observable.
func (r *Resolver) Merge(ctx context.Context, fromIDs []string, toID, reason string, evidenceArtifactIDs []int64, actor string) (*store.Operation, error) {
	op, err := r.store.MergeProfiles(ctx, fromIDs, toID, reason, evidenceArtifactIDs, actor)
	if err != nil {
		return nil, err
	}
	r.logger.Info("identity profiles merged",
		logging.String(logging.FieldProfileID, toID),
		logging.Int("merged_profiles", len(fromIDs)),
		logging.String("operation_id", op.ID),
		logging.String("actor", actor),
	)
	return op, nil
}

// Split creates a new profile and moves the named claims to it, with the
// same audit-or-nothing guarantee as Merge.
func (r *Resolver) Split(ctx context.Context, profileID string, claimIDs []int64, reason, actor string) (*store.Profile, *store.Operation, error) {
	profile, op, err := r.store.SplitProfile(ctx, profileID, claimIDs, reason, actor)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info("identity profile split",
		logging.String(logging.FieldProfileID, profileID),
		logging.String("new_profile_id", profile.ID),
		logging.Int("claims_moved", len(claimIDs)),
		logging.String("operation_id", op.ID),
		logging.String("actor", actor),
	)
	return profile, op, nil
}

// Deactivate retires a profile, writing the audit operation in the same
// transaction.
func (r *Resolver) Deactivate(ctx context.Context, profileID, reason, actor string) (*store.Operation, error) {
	return r.store.DeactivateProfile(ctx, profileID, reason, actor)
}

// History returns all operations naming the profile as a source or
// destination, ordered by time, for provenance display.
func (r *Resolver) History(ctx context.Context, profileID string) ([]*store.Operation, error) {
	return r.store.OperationHistory(ctx, profileID)
}

func newProfileForClaim(claimType, normalized, rawValue string) *store.Profile {
	profile := &store.Profile{
		Kind:           store.ProfilePerson,
		CanonicalValue: normalized,
		DisplayName:    displayNameFor(claimType, rawValue, normalized),
	}
	switch claimType {
	case ClaimEmail:
		profile.Domain = DomainOf(normalized)
	case ClaimDomain:
		profile.Kind = store.ProfileOrganization
		profile.Domain = normalized
	}
	return profile
}

func displayNameFor(claimType, rawValue, normalized string) string {
	trimmed := strings.TrimSpace(rawValue)
	if claimType == ClaimEmail {
		if open := strings.LastIndex(trimmed, "<"); open > 0 {
			if name := strings.Trim(strings.TrimSpace(trimmed[:open]), `"`); name != "" {
				return name
			}
		}
		if at := strings.Index(normalized, "@"); at > 0 {
			return normalized[:at]
		}
	}
	if trimmed != "" {
		return trimmed
	}
	return normalized
}
