package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"casefile/internal/config"
	"casefile/internal/store"
)

func newStoreCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the evidence ledger database",
	}
	cmd.AddCommand(newStoreStatsCommand(cc))
	cmd.AddCommand(newStoreHealthCommand(cc))
	return cmd
}

func newStoreStatsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts across the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, stats)
				}

				rows := [][]string{
					{"Artifacts", strconv.Itoa(stats.Artifacts)},
					{"Blobs", strconv.Itoa(stats.Blobs)},
					{"Excerpts", strconv.Itoa(stats.Excerpts)},
					{"Open fix items", strconv.Itoa(stats.OpenFixItems)},
					{"Pending linking", strconv.Itoa(stats.PendingLinking)},
				}
				for _, status := range []store.ProfileStatus{store.ProfileActive, store.ProfileMerged, store.ProfileSplit, store.ProfileInactive} {
					if count, ok := stats.Profiles[status]; ok {
						rows = append(rows, []string{"Profiles " + string(status), strconv.Itoa(count)})
					}
				}
				for _, status := range []store.LinkStatus{store.LinkProposed, store.LinkConfirmed, store.LinkRejected} {
					if count, ok := stats.Links[status]; ok {
						rows = append(rows, []string{"Links " + string(status), strconv.Itoa(count)})
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Metric", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newStoreHealthCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check ledger database connectivity, schema, and integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				health, err := st.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, health)
				}

				rows := [][]string{
					{"Database path", health.DBPath},
					{"Exists", formatBool(health.DatabaseExists)},
					{"Readable", formatBool(health.DatabaseReadable)},
					{"Tables present", strconv.Itoa(len(health.TablesPresent))},
					{"Integrity check", formatBool(health.IntegrityCheck)},
				}
				if len(health.MissingTables) > 0 {
					rows = append(rows, []string{"Missing tables", strings.Join(health.MissingTables, ", ")})
				}
				if health.Error != "" {
					rows = append(rows, []string{"Error", health.Error})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Check", "Result"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				))
				if len(health.MissingTables) > 0 || !health.IntegrityCheck {
					return fmt.Errorf("ledger database is unhealthy")
				}
				return nil
			})
		},
	}
}

func formatBool(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
