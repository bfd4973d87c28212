package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"casefile/internal/config"
	"casefile/internal/store"
)

func newFixQueueCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixqueue",
		Short: "Inspect and resolve items awaiting manual review",
	}
	cmd.AddCommand(newFixQueueListCommand(cc))
	cmd.AddCommand(newFixQueueResolveCommand(cc))
	return cmd
}

func newFixQueueListCommand(cc *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open fix-queue items, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				items, err := st.OpenFixItems(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, fixItemsOutput(items))
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "fix queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						string(item.Kind),
						formatArtifactID(item.ArtifactID),
						item.ClaimType,
						item.RawValue,
						item.Detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Kind", "Artifact", "Claim Type", "Value", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum items to list")
	return cmd
}

func newFixQueueResolveCommand(cc *commandContext) *cobra.Command {
	var resolution, actor string

	cmd := &cobra.Command{
		Use:   "resolve <item-id>",
		Short: "Mark one fix-queue item resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0], "fix item id")
			if err != nil {
				return err
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				if err := st.ResolveFixItem(cmd.Context(), itemID, resolution, actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fix item %d resolved\n", itemID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&resolution, "resolution", "", "What was done to resolve the item")
	cmd.Flags().StringVar(&actor, "actor", "", "Reviewer recorded on the resolution")
	_ = cmd.MarkFlagRequired("resolution")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

type fixItemRow struct {
	ID         int64           `json:"id"`
	Kind       store.FixKind   `json:"kind"`
	ArtifactID int64           `json:"artifact_id,omitempty"`
	ClaimType  string          `json:"claim_type,omitempty"`
	RawValue   string          `json:"raw_value,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	Status     store.FixStatus `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

func fixItemsOutput(items []*store.FixItem) []fixItemRow {
	rows := make([]fixItemRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, fixItemRow{
			ID:         item.ID,
			Kind:       item.Kind,
			ArtifactID: item.ArtifactID,
			ClaimType:  item.ClaimType,
			RawValue:   item.RawValue,
			Detail:     item.Detail,
			Status:     item.Status,
			CreatedAt:  item.CreatedAt,
		})
	}
	return rows
}
