package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"casefile/internal/config"
	"casefile/internal/linking"
	"casefile/internal/store"
)

type linkSweepOutput struct {
	Summary linking.Summary `json:"summary"`
}

func newSweepCommand(cc *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Link artifacts that are unlinked or flagged for re-linking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				batch := limit
				if batch <= 0 {
					batch = cfg.Linking.SweepBatchSize
				}
				summary, err := cc.newLinker(st, cfg).Sweep(cmd.Context(), batch)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, linkSweepOutput{Summary: summary})
				}
				printSweepSummary(cmd, summary)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum artifacts to process (default from config)")
	return cmd
}

func printSweepSummary(cmd *cobra.Command, summary linking.Summary) {
	rows := [][]string{
		{"Attempted", strconv.Itoa(summary.Attempted)},
		{"Succeeded", strconv.Itoa(summary.Succeeded)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Links proposed", strconv.Itoa(summary.Proposed)},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Sweep", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	for _, itemErr := range summary.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "artifact %d: %s (%s)\n", itemErr.ArtifactID, itemErr.Message, itemErr.Kind)
	}
}
