package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"casefile/internal/config"
	"casefile/internal/confirm"
	"casefile/internal/store"
)

func newLinksCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Review and promote entity links",
	}
	cmd.AddCommand(newLinksAutoConfirmCommand(cc))
	cmd.AddCommand(newLinksFlagCommand(cc))
	cmd.AddCommand(newLinksReportCommand(cc))
	cmd.AddCommand(newLinksConfirmCommand(cc))
	cmd.AddCommand(newLinksRejectCommand(cc))
	cmd.AddCommand(newLinksListCommand(cc))
	cmd.AddCommand(newLinksEntityCommand(cc))
	cmd.AddCommand(newLinksAddCommand(cc))
	return cmd
}

func newLinksAutoConfirmCommand(cc *commandContext) *cobra.Command {
	var threshold float64
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "autoconfirm",
		Short: "Promote proposed links at or above the confidence threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := confirm.Options{DryRun: dryRun}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = &threshold
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				report, err := cc.newGate(st, cfg).AutoConfirm(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, report)
				}

				verb := "confirmed"
				if report.DryRun {
					verb = "would confirm"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d links at threshold %.2f\n", verb, report.Total, report.Threshold)
				if len(report.PerMethod) > 0 {
					rows := make([][]string, 0, len(report.PerMethod))
					for _, mc := range report.PerMethod {
						rows = append(rows, []string{string(mc.Method), strconv.Itoa(mc.Count)})
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Method", "Count"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Confidence threshold (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report would-be promotions without mutating")
	return cmd
}

func newLinksFlagCommand(cc *commandContext) *cobra.Command {
	var threshold float64
	var limit int

	cmd := &cobra.Command{
		Use:   "flag",
		Short: "List proposed links below the low-confidence threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			var override *float64
			if cmd.Flags().Changed("threshold") {
				override = &threshold
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				links, err := cc.newGate(st, cfg).FlagLowConfidence(cmd.Context(), override, limit)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, linksOutput(links))
				}
				printLinksTable(cmd, links)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Confidence threshold (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum links to list")
	return cmd
}

func newLinksReportCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show link status distribution and per-method confidence statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				report, err := cc.newGate(st, cfg).ConfirmationReport(cmd.Context())
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, report)
				}

				statusRows := make([][]string, 0, len(report.StatusCounts))
				for _, status := range []store.LinkStatus{store.LinkProposed, store.LinkConfirmed, store.LinkRejected} {
					statusRows = append(statusRows, []string{string(status), strconv.Itoa(report.StatusCounts[status])})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					statusRows,
					[]columnAlignment{alignLeft, alignRight},
				))

				if len(report.MethodStats) > 0 {
					methodRows := make([][]string, 0, len(report.MethodStats))
					for _, ms := range report.MethodStats {
						methodRows = append(methodRows, []string{
							string(ms.Method),
							strconv.Itoa(ms.Count),
							formatConfidence(ms.Mean),
							formatConfidence(ms.Min),
							formatConfidence(ms.Max),
						})
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Method", "Count", "Avg", "Min", "Max"},
						methodRows,
						[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
					))
				}

				h := report.Histogram
				histRows := [][]string{
					{">= 0.90", strconv.Itoa(h.AtLeast90)},
					{"0.80 - 0.89", strconv.Itoa(h.From80)},
					{"0.70 - 0.79", strconv.Itoa(h.From70)},
					{"0.50 - 0.69", strconv.Itoa(h.From50)},
					{"< 0.50", strconv.Itoa(h.Below50)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Proposed Confidence", "Count"},
					histRows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newLinksConfirmCommand(cc *commandContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "confirm <link-id>",
		Short: "Confirm one proposed link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			linkID, err := parseID(args[0], "link id")
			if err != nil {
				return err
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				if err := cc.newGate(st, cfg).ConfirmLink(cmd.Context(), linkID, actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "link %d confirmed\n", linkID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Reviewer recorded on the decision")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newLinksRejectCommand(cc *commandContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "reject <link-id>",
		Short: "Reject one proposed link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			linkID, err := parseID(args[0], "link id")
			if err != nil {
				return err
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				if err := cc.newGate(st, cfg).RejectLink(cmd.Context(), linkID, actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "link %d rejected\n", linkID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Reviewer recorded on the decision")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newLinksListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <artifact-id>",
		Short: "List all links for one artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifactID, err := parseID(args[0], "artifact id")
			if err != nil {
				return err
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				links, err := st.LinksByArtifact(cmd.Context(), artifactID)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, linksOutput(links))
				}
				printLinksTable(cmd, links)
				return nil
			})
		},
	}
}

func newLinksEntityCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "entity <entity-type> <entity-id>",
		Short: "List confirmed links targeting one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				links, err := st.ConfirmedLinksByEntity(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, linksOutput(links))
				}
				printLinksTable(cmd, links)
				return nil
			})
		},
	}
}

func newLinksAddCommand(cc *commandContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "add <artifact-id> <entity-type> <entity-id>",
		Short: "Manually link an artifact to an entity",
		Long: `Records a user-confirmed link at full confidence. The link is inserted
as proposed and immediately confirmed under the given actor so the audit
trail shows who vouched for it.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifactID, err := parseID(args[0], "artifact id")
			if err != nil {
				return err
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				link := &store.Link{
					ArtifactID: artifactID,
					EntityType: args[1],
					EntityID:   args[2],
					Method:     store.MethodUserConfirmed,
					Confidence: 1.0,
					Reasons:    []string{"manual link by " + actor},
				}
				inserted, err := st.InsertLink(cmd.Context(), link, false)
				if err != nil {
					return err
				}
				if !inserted {
					return fmt.Errorf("artifact %d already has a user-confirmed link to %s/%s", artifactID, args[1], args[2])
				}
				if err := st.DecideLink(cmd.Context(), link.ID, store.LinkConfirmed, actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "link %d confirmed for artifact %d\n", link.ID, artifactID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Reviewer recorded on the link")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

type linkRow struct {
	ID         int64             `json:"id"`
	ArtifactID int64             `json:"artifact_id"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Method     store.MatchMethod `json:"method"`
	Confidence float64           `json:"confidence"`
	Status     store.LinkStatus  `json:"status"`
	Reasons    []string          `json:"reasons,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func linksOutput(links []*store.Link) []linkRow {
	rows := make([]linkRow, 0, len(links))
	for _, link := range links {
		rows = append(rows, linkRow{
			ID:         link.ID,
			ArtifactID: link.ArtifactID,
			EntityType: link.EntityType,
			EntityID:   link.EntityID,
			Method:     link.Method,
			Confidence: link.Confidence,
			Status:     link.Status,
			Reasons:    link.Reasons,
			CreatedAt:  link.CreatedAt,
		})
	}
	return rows
}

func printLinksTable(cmd *cobra.Command, links []*store.Link) {
	if len(links) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no links")
		return
	}
	rows := make([][]string, 0, len(links))
	for _, link := range links {
		rows = append(rows, []string{
			strconv.FormatInt(link.ID, 10),
			strconv.FormatInt(link.ArtifactID, 10),
			link.EntityType,
			link.EntityID,
			string(link.Method),
			formatConfidence(link.Confidence),
			string(link.Status),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Artifact", "Entity Type", "Entity", "Method", "Confidence", "Status"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func formatConfidence(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func parseID(raw, label string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", label, raw)
	}
	return id, nil
}
