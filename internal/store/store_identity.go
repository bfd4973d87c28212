package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"casefile/internal/faults"
)

// GetProfile fetches an identity profile by id.
func (s *Store) GetProfile(ctx context.Context, id string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM identity_profiles WHERE id = ?`, id)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// FindProfileByCanonical returns the active profile holding a canonical
// value, for the read-only consumer interface.
func (s *Store) FindProfileByCanonical(ctx context.Context, canonicalValue string) (*Profile, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+profileColumns+` FROM identity_profiles
         WHERE canonical_value = ? AND status = ? ORDER BY created_at LIMIT 1`,
		canonicalValue,
		ProfileActive,
	)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by canonical: %w", err)
	}
	return profile, nil
}

// FindActiveClaim returns the active claim binding a normalized value, or
// nil when the identifier is unbound.
func (s *Store) FindActiveClaim(ctx context.Context, claimType, normalizedValue string) (*Claim, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+claimColumns+` FROM identity_claims
         WHERE claim_type = ? AND normalized_value = ? AND status = ?`,
		claimType,
		normalizedValue,
		ClaimActive,
	)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active claim: %w", err)
	}
	return claim, nil
}

// ClaimsByProfile returns all claims bound to a profile.
func (s *Store) ClaimsByProfile(ctx context.Context, profileID string) ([]*Claim, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+claimColumns+` FROM identity_claims WHERE profile_id = ? ORDER BY id`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var claims []*Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// CreateProfileWithClaim inserts a new active profile, its first claim, and
// the create operation in one transaction. The claim uniqueness index
// arbitrates concurrent creation: the loser receives a constraint error and
// should re-read the winning claim.
func (s *Store) CreateProfileWithClaim(ctx context.Context, profile *Profile, claim *Claim, source string) (*Operation, error) {
	if profile == nil || claim == nil {
		return nil, errors.New("profile and claim are required")
	}
	now := time.Now().UTC()
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.Status = ProfileActive
	profile.CreatedAt = now
	profile.UpdatedAt = now

	op := &Operation{
		ID:          uuid.NewString(),
		Type:        OpCreate,
		ToProfileID: profile.ID,
		Reason:      "observed " + claim.Type,
		Actor:       actorOrSystem(source),
		CreatedAt:   now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO identity_profiles (id, kind, display_name, canonical_value, domain, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			profile.ID,
			profile.Kind,
			nullableString(profile.DisplayName),
			nullableString(profile.CanonicalValue),
			nullableString(profile.Domain),
			profile.Status,
			formatTime(now),
			formatTime(now),
		); err != nil {
			return classifyDBError("insert profile", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO identity_claims (profile_id, claim_type, raw_value, normalized_value, confidence, source, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			profile.ID,
			claim.Type,
			claim.RawValue,
			claim.NormalizedValue,
			claim.Confidence,
			nullableString(claim.Source),
			ClaimActive,
			formatTime(now),
			formatTime(now),
		)
		if err != nil {
			return classifyDBError("insert claim", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			claim.ID = id
		}
		claim.ProfileID = profile.ID
		claim.Status = ClaimActive

		return insertOperation(ctx, tx, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// MergeProfiles reassigns every claim owned by fromIDs to toID, marks the
// source profiles merged, and writes exactly one merge operation. The whole
// set commits or rolls back together; a partial merge is never observable.
func (s *Store) MergeProfiles(ctx context.Context, fromIDs []string, toID, reason string, evidenceArtifactIDs []int64, actor string) (*Operation, error) {
	if len(fromIDs) == 0 {
		return nil, faults.Wrap(faults.ErrValidation, "store", "merge profiles", "no source profiles", nil)
	}
	if strings.TrimSpace(actor) == "" {
		return nil, faults.Wrap(faults.ErrValidation, "store", "merge profiles", "actor is required", nil)
	}
	for _, from := range fromIDs {
		if from == toID {
			return nil, faults.Wrap(faults.ErrValidation, "store", "merge profiles", "cannot merge a profile into itself", nil)
		}
	}

	now := time.Now().UTC()
	op := &Operation{
		ID:                  uuid.NewString(),
		Type:                OpMerge,
		FromProfileIDs:      append([]string(nil), fromIDs...),
		ToProfileID:         toID,
		Reason:              reason,
		EvidenceArtifactIDs: append([]int64(nil), evidenceArtifactIDs...),
		Actor:               actor,
		CreatedAt:           now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		target, err := profileForUpdate(ctx, tx, toID)
		if err != nil {
			return err
		}
		if target.Status != ProfileActive {
			return faults.Wrap(faults.ErrConflict, "store", "merge profiles", fmt.Sprintf("target profile %s is %s", toID, target.Status), nil)
		}
		for _, fromID := range fromIDs {
			source, err := profileForUpdate(ctx, tx, fromID)
			if err != nil {
				return err
			}
			if source.Status != ProfileActive {
				return faults.Wrap(faults.ErrConflict, "store", "merge profiles", fmt.Sprintf("source profile %s is %s", fromID, source.Status), nil)
			}
		}

		placeholders := makePlaceholders(len(fromIDs))
		args := make([]any, 0, len(fromIDs)+2)
		args = append(args, toID, formatTime(now))
		for _, fromID := range fromIDs {
			args = append(args, fromID)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE identity_claims SET profile_id = ?, updated_at = ? WHERE profile_id IN (`+placeholders+`)`,
			args...,
		); err != nil {
			return classifyDBError("reassign claims", err)
		}

		statusArgs := make([]any, 0, len(fromIDs)+2)
		statusArgs = append(statusArgs, ProfileMerged, formatTime(now))
		for _, fromID := range fromIDs {
			statusArgs = append(statusArgs, fromID)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE identity_profiles SET status = ?, updated_at = ? WHERE id IN (`+placeholders+`)`,
			statusArgs...,
		); err != nil {
			return classifyDBError("mark profiles merged", err)
		}

		return insertOperation(ctx, tx, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// SplitProfile creates a new active profile and moves the named claims to
// it, writing one split operation in the same transaction. When the split
// strips the source of every claim the source is marked split.
func (s *Store) SplitProfile(ctx context.Context, profileID string, claimIDs []int64, reason, actor string) (*Profile, *Operation, error) {
	if len(claimIDs) == 0 {
		return nil, nil, faults.Wrap(faults.ErrValidation, "store", "split profile", "no claims named", nil)
	}
	if strings.TrimSpace(actor) == "" {
		return nil, nil, faults.Wrap(faults.ErrValidation, "store", "split profile", "actor is required", nil)
	}

	now := time.Now().UTC()
	var created *Profile

	op := &Operation{
		ID:             uuid.NewString(),
		Type:           OpSplit,
		FromProfileIDs: []string{profileID},
		Reason:         reason,
		Actor:          actor,
		CreatedAt:      now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		source, err := profileForUpdate(ctx, tx, profileID)
		if err != nil {
			return err
		}
		if source.Status != ProfileActive {
			return faults.Wrap(faults.ErrConflict, "store", "split profile", fmt.Sprintf("profile %s is %s", profileID, source.Status), nil)
		}

		placeholders := makePlaceholders(len(claimIDs))
		args := make([]any, 0, len(claimIDs)+1)
		args = append(args, profileID)
		for _, id := range claimIDs {
			args = append(args, id)
		}
		var owned int
		row := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(1) FROM identity_claims WHERE profile_id = ? AND id IN (`+placeholders+`)`,
			args...,
		)
		if err := row.Scan(&owned); err != nil {
			return fmt.Errorf("count claims: %w", err)
		}
		if owned != len(claimIDs) {
			return faults.Wrap(faults.ErrNotFound, "store", "split profile", "one or more claims do not belong to the profile", nil)
		}

		newProfile := &Profile{
			ID:          uuid.NewString(),
			Kind:        source.Kind,
			DisplayName: source.DisplayName,
			Status:      ProfileActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO identity_profiles (id, kind, display_name, canonical_value, domain, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			newProfile.ID,
			newProfile.Kind,
			nullableString(newProfile.DisplayName),
			nil,
			nil,
			newProfile.Status,
			formatTime(now),
			formatTime(now),
		); err != nil {
			return classifyDBError("insert split profile", err)
		}

		moveArgs := make([]any, 0, len(claimIDs)+2)
		moveArgs = append(moveArgs, newProfile.ID, formatTime(now))
		for _, id := range claimIDs {
			moveArgs = append(moveArgs, id)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE identity_claims SET profile_id = ?, updated_at = ? WHERE id IN (`+placeholders+`)`,
			moveArgs...,
		); err != nil {
			return classifyDBError("move claims", err)
		}

		var remaining int
		row = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM identity_claims WHERE profile_id = ?`, profileID)
		if err := row.Scan(&remaining); err != nil {
			return fmt.Errorf("count remaining claims: %w", err)
		}
		if remaining == 0 {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE identity_profiles SET status = ?, updated_at = ? WHERE id = ?`,
				ProfileSplit,
				formatTime(now),
				profileID,
			); err != nil {
				return classifyDBError("mark profile split", err)
			}
		}

		op.ToProfileID = newProfile.ID
		created = newProfile
		return insertOperation(ctx, tx, op)
	})
	if err != nil {
		return nil, nil, err
	}
	return created, op, nil
}

// DeactivateProfile retires a profile and records the deactivate operation
// in the same transaction.
func (s *Store) DeactivateProfile(ctx context.Context, profileID, reason, actor string) (*Operation, error) {
	now := time.Now().UTC()
	op := &Operation{
		ID:             uuid.NewString(),
		Type:           OpDeactivate,
		FromProfileIDs: []string{profileID},
		Reason:         reason,
		Actor:          actorOrSystem(actor),
		CreatedAt:      now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		profile, err := profileForUpdate(ctx, tx, profileID)
		if err != nil {
			return err
		}
		if profile.Status != ProfileActive {
			return faults.Wrap(faults.ErrConflict, "store", "deactivate profile", fmt.Sprintf("profile %s is %s", profileID, profile.Status), nil)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE identity_profiles SET status = ?, updated_at = ? WHERE id = ?`,
			ProfileInactive,
			formatTime(now),
			profileID,
		); err != nil {
			return classifyDBError("mark profile inactive", err)
		}
		// Retiring the claims unbinds the identifiers so they can be
		// observed fresh later without colliding with the dead profile.
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE identity_claims SET status = ?, updated_at = ? WHERE profile_id = ? AND status = ?`,
			ClaimRetired,
			formatTime(now),
			profileID,
			ClaimActive,
		); err != nil {
			return classifyDBError("retire claims", err)
		}
		return insertOperation(ctx, tx, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// OperationHistory returns every operation naming the profile as a source
// or destination, ordered by time, for provenance display.
func (s *Store) OperationHistory(ctx context.Context, profileID string) ([]*Operation, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, op, from_profile_ids, to_profile_id, reason, evidence_artifact_ids, actor, created_at
         FROM identity_operations
         WHERE to_profile_id = ? OR instr(COALESCE(from_profile_ids, ''), ?) > 0
         ORDER BY created_at, id`,
		profileID,
		`"`+profileID+`"`,
	)
	if err != nil {
		return nil, fmt.Errorf("query operation history: %w", err)
	}
	defer rows.Close()

	var operations []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		operations = append(operations, op)
	}
	return operations, rows.Err()
}

func insertOperation(ctx context.Context, tx *sql.Tx, op *Operation) error {
	fromIDs, err := marshalJSONColumn(op.FromProfileIDs)
	if err != nil {
		return err
	}
	evidence, err := marshalJSONColumn(op.EvidenceArtifactIDs)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO identity_operations (id, op, from_profile_ids, to_profile_id, reason, evidence_artifact_ids, actor, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID,
		op.Type,
		fromIDs,
		nullableString(op.ToProfileID),
		nullableString(op.Reason),
		evidence,
		op.Actor,
		formatTime(op.CreatedAt),
	); err != nil {
		return classifyDBError("insert operation", err)
	}
	return nil
}

func profileForUpdate(ctx context.Context, tx *sql.Tx, id string) (*Profile, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM identity_profiles WHERE id = ?`, id)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, faults.Wrap(faults.ErrNotFound, "store", "load profile", id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "system"
	}
	return actor
}

const profileColumns = "id, kind, display_name, canonical_value, domain, status, created_at, updated_at"

func scanProfile(scanner interface{ Scan(dest ...any) error }) (*Profile, error) {
	var (
		profile        Profile
		displayName    sql.NullString
		canonicalValue sql.NullString
		domain         sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&profile.ID,
		&profile.Kind,
		&displayName,
		&canonicalValue,
		&domain,
		&profile.Status,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	profile.DisplayName = displayName.String
	profile.CanonicalValue = canonicalValue.String
	profile.Domain = domain.String
	if created, err := parseTimeString(createdRaw); err == nil {
		profile.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		profile.UpdatedAt = updated
	}
	return &profile, nil
}

const claimColumns = "id, profile_id, claim_type, raw_value, normalized_value, confidence, source, status, created_at, updated_at"

func scanClaim(scanner interface{ Scan(dest ...any) error }) (*Claim, error) {
	var (
		claim      Claim
		source     sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&claim.ID,
		&claim.ProfileID,
		&claim.Type,
		&claim.RawValue,
		&claim.NormalizedValue,
		&claim.Confidence,
		&source,
		&claim.Status,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	claim.Source = source.String
	if created, err := parseTimeString(createdRaw); err == nil {
		claim.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		claim.UpdatedAt = updated
	}
	return &claim, nil
}

func scanOperation(scanner interface{ Scan(dest ...any) error }) (*Operation, error) {
	var (
		op          Operation
		fromIDs     sql.NullString
		toProfileID sql.NullString
		reason      sql.NullString
		evidence    sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(
		&op.ID,
		&op.Type,
		&fromIDs,
		&toProfileID,
		&reason,
		&evidence,
		&op.Actor,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	op.FromProfileIDs = unmarshalStringList(fromIDs)
	op.ToProfileID = toProfileID.String
	op.Reason = reason.String
	op.EvidenceArtifactIDs = unmarshalInt64List(evidence)
	if created, err := parseTimeString(createdRaw); err == nil {
		op.CreatedAt = created
	}
	return &op, nil
}
