package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"casefile/internal/config"
	"casefile/internal/faults"
	"casefile/internal/identity"
	"casefile/internal/store"
)

func newIdentityCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Resolve and curate identity profiles",
	}
	cmd.AddCommand(newIdentityResolveCommand(cc))
	cmd.AddCommand(newIdentityShowCommand(cc))
	cmd.AddCommand(newIdentityMergeCommand(cc))
	cmd.AddCommand(newIdentitySplitCommand(cc))
	cmd.AddCommand(newIdentityDeactivateCommand(cc))
	cmd.AddCommand(newIdentityHistoryCommand(cc))
	return cmd
}

func newIdentityResolveCommand(cc *commandContext) *cobra.Command {
	var create bool
	var source string

	cmd := &cobra.Command{
		Use:   "resolve <claim-type> <value>",
		Short: "Resolve an external identifier to its profile",
		Long: `Normalizes the identifier and looks up its active claim. Claim types:
email, chat_handle, calendar_id, domain. With --create, an unbound
identifier provisions a new profile bound to that claim.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				profile, err := cc.newResolver(st).Resolve(cmd.Context(), args[0], args[1], identity.ResolveOptions{
					CreateIfMissing: create,
					Source:          source,
				})
				if err != nil {
					return err
				}
				if profile == nil {
					if cc.jsonOutput() {
						return writeJSON(cmd, map[string]any{"resolved": false})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "no profile bound to %s %q\n", args[0], args[1])
					return nil
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, profileOutput(profile))
				}
				printProfileTable(cmd, profile)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "Create a profile when the identifier is unbound")
	cmd.Flags().StringVar(&source, "source", "cli", "Source recorded on a created claim")
	return cmd
}

func newIdentityShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <profile-id|canonical-value>",
		Short: "Show a profile and its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				profile, err := st.GetProfile(cmd.Context(), args[0])
				if errors.Is(err, faults.ErrNotFound) {
					// Operators often have the canonical identifier at hand
					// rather than the profile UUID.
					if byValue, lookupErr := st.FindProfileByCanonical(cmd.Context(), args[0]); lookupErr == nil && byValue != nil {
						profile, err = byValue, nil
					}
				}
				if err != nil {
					return err
				}
				claims, err := st.ClaimsByProfile(cmd.Context(), profile.ID)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, struct {
						Profile profileRow `json:"profile"`
						Claims  []claimRow `json:"claims"`
					}{profileOutput(profile), claimsOutput(claims)})
				}
				printProfileTable(cmd, profile)
				printClaimsTable(cmd, claims)
				return nil
			})
		},
	}
}

func newIdentityMergeCommand(cc *commandContext) *cobra.Command {
	var from []string
	var to, reason, actor string
	var evidence []int64

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge duplicate profiles into a survivor",
		Long: `Reassigns every claim on the source profiles to the survivor and marks
the sources merged, in one transaction with the audit operation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				op, err := cc.newResolver(st).Merge(cmd.Context(), from, to, reason, evidence, actor)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, operationOutput(op))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "merged %s into %s (operation %s)\n", strings.Join(from, ", "), to, op.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&from, "from", nil, "Source profile IDs to merge away")
	cmd.Flags().StringVar(&to, "to", "", "Surviving profile ID")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the operation")
	cmd.Flags().StringVar(&actor, "actor", "", "Operator recorded on the operation")
	cmd.Flags().Int64SliceVar(&evidence, "evidence", nil, "Artifact IDs supporting the merge")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newIdentitySplitCommand(cc *commandContext) *cobra.Command {
	var claims []int64
	var reason, actor string

	cmd := &cobra.Command{
		Use:   "split <profile-id>",
		Short: "Move claims from a conflated profile onto a new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				newProfile, op, err := cc.newResolver(st).Split(cmd.Context(), args[0], claims, reason, actor)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, struct {
						Profile   profileRow   `json:"profile"`
						Operation operationRow `json:"operation"`
					}{profileOutput(newProfile), operationOutput(op)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "moved %d claims to new profile %s (operation %s)\n", len(claims), newProfile.ID, op.ID)
				return nil
			})
		},
	}

	cmd.Flags().Int64SliceVar(&claims, "claims", nil, "Claim IDs to move to the new profile")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the operation")
	cmd.Flags().StringVar(&actor, "actor", "", "Operator recorded on the operation")
	_ = cmd.MarkFlagRequired("claims")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newIdentityDeactivateCommand(cc *commandContext) *cobra.Command {
	var reason, actor string

	cmd := &cobra.Command{
		Use:   "deactivate <profile-id>",
		Short: "Deactivate a profile and retire its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				op, err := cc.newResolver(st).Deactivate(cmd.Context(), args[0], reason, actor)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, operationOutput(op))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile %s deactivated (operation %s)\n", args[0], op.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the operation")
	cmd.Flags().StringVar(&actor, "actor", "", "Operator recorded on the operation")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newIdentityHistoryCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <profile-id>",
		Short: "Show the audit trail of operations touching a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				ops, err := cc.newResolver(st).History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					out := make([]operationRow, 0, len(ops))
					for _, op := range ops {
						out = append(out, operationOutput(op))
					}
					return writeJSON(cmd, out)
				}
				if len(ops) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no operations")
					return nil
				}
				rows := make([][]string, 0, len(ops))
				for _, op := range ops {
					rows = append(rows, []string{
						op.ID,
						string(op.Type),
						strings.Join(op.FromProfileIDs, ", "),
						op.ToProfileID,
						op.Actor,
						op.Reason,
						op.CreatedAt.Format(time.RFC3339),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Operation", "Type", "From", "To", "Actor", "Reason", "At"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

type profileRow struct {
	ID             string              `json:"id"`
	Kind           store.ProfileKind   `json:"kind"`
	DisplayName    string              `json:"display_name"`
	CanonicalValue string              `json:"canonical_value"`
	Domain         string              `json:"domain,omitempty"`
	Status         store.ProfileStatus `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
}

func profileOutput(p *store.Profile) profileRow {
	return profileRow{
		ID:             p.ID,
		Kind:           p.Kind,
		DisplayName:    p.DisplayName,
		CanonicalValue: p.CanonicalValue,
		Domain:         p.Domain,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
	}
}

type claimRow struct {
	ID              int64             `json:"id"`
	Type            string            `json:"type"`
	RawValue        string            `json:"raw_value"`
	NormalizedValue string            `json:"normalized_value"`
	Confidence      float64           `json:"confidence"`
	Source          string            `json:"source,omitempty"`
	Status          store.ClaimStatus `json:"status"`
}

func claimsOutput(claims []*store.Claim) []claimRow {
	rows := make([]claimRow, 0, len(claims))
	for _, c := range claims {
		rows = append(rows, claimRow{
			ID:              c.ID,
			Type:            c.Type,
			RawValue:        c.RawValue,
			NormalizedValue: c.NormalizedValue,
			Confidence:      c.Confidence,
			Source:          c.Source,
			Status:          c.Status,
		})
	}
	return rows
}

type operationRow struct {
	ID                  string              `json:"id"`
	Type                store.OperationType `json:"type"`
	FromProfileIDs      []string            `json:"from_profile_ids,omitempty"`
	ToProfileID         string              `json:"to_profile_id"`
	Reason              string              `json:"reason,omitempty"`
	EvidenceArtifactIDs []int64             `json:"evidence_artifact_ids,omitempty"`
	Actor               string              `json:"actor"`
	CreatedAt           time.Time           `json:"created_at"`
}

func operationOutput(op *store.Operation) operationRow {
	return operationRow{
		ID:                  op.ID,
		Type:                op.Type,
		FromProfileIDs:      op.FromProfileIDs,
		ToProfileID:         op.ToProfileID,
		Reason:              op.Reason,
		EvidenceArtifactIDs: op.EvidenceArtifactIDs,
		Actor:               op.Actor,
		CreatedAt:           op.CreatedAt,
	}
}

func printProfileTable(cmd *cobra.Command, p *store.Profile) {
	rows := [][]string{
		{"ID", p.ID},
		{"Kind", string(p.Kind)},
		{"Display name", p.DisplayName},
		{"Canonical value", p.CanonicalValue},
		{"Domain", p.Domain},
		{"Status", string(p.Status)},
		{"Created", p.CreatedAt.Format(time.RFC3339)},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Field", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	))
}

func printClaimsTable(cmd *cobra.Command, claims []*store.Claim) {
	if len(claims) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no claims")
		return
	}
	rows := make([][]string, 0, len(claims))
	for _, c := range claims {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			c.Type,
			c.NormalizedValue,
			formatConfidence(c.Confidence),
			c.Source,
			string(c.Status),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Type", "Value", "Confidence", "Source", "Status"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}
