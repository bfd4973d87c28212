package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"casefile/internal/config"
	"casefile/internal/store"
)

func newExcerptCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "excerpt",
		Short: "Create and list evidence excerpts",
	}
	cmd.AddCommand(newExcerptAddCommand(cc))
	cmd.AddCommand(newExcerptListCommand(cc))
	return cmd
}

func newExcerptAddCommand(cc *commandContext) *cobra.Command {
	var anchorType string
	var anchorStart, anchorEnd int
	var text string

	cmd := &cobra.Command{
		Use:   "add <artifact-id>",
		Short: "Store an anchored excerpt of an artifact's payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifactID, err := parseID(args[0], "artifact id")
			if err != nil {
				return err
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				id, err := cc.newExtractor(st, cfg).Create(cmd.Context(), artifactID, anchorType, anchorStart, anchorEnd, text)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, map[string]any{"excerpt_id": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "excerpt %d stored for artifact %d\n", id, artifactID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&anchorType, "anchor-type", "char_range", "Anchor scheme for the span")
	cmd.Flags().IntVar(&anchorStart, "start", 0, "Span start offset")
	cmd.Flags().IntVar(&anchorEnd, "end", 0, "Span end offset")
	cmd.Flags().StringVar(&text, "text", "", "Excerpt text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newExcerptListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <artifact-id>",
		Short: "List excerpts stored for an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifactID, err := parseID(args[0], "artifact id")
			if err != nil {
				return err
			}
			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				excerpts, err := st.ExcerptsByArtifact(cmd.Context(), artifactID)
				if err != nil {
					return err
				}
				if cc.jsonOutput() {
					return writeJSON(cmd, excerptsOutput(excerpts))
				}
				if len(excerpts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no excerpts")
					return nil
				}
				rows := make([][]string, 0, len(excerpts))
				for _, ex := range excerpts {
					rows = append(rows, []string{
						strconv.FormatInt(ex.ID, 10),
						ex.AnchorType,
						fmt.Sprintf("%d..%d", ex.AnchorStart, ex.AnchorEnd),
						ex.Text,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Anchor", "Span", "Text"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

type excerptRow struct {
	ID          int64  `json:"id"`
	ArtifactID  int64  `json:"artifact_id"`
	AnchorType  string `json:"anchor_type"`
	AnchorStart int    `json:"anchor_start"`
	AnchorEnd   int    `json:"anchor_end"`
	Text        string `json:"text"`
	TextHash    string `json:"text_hash"`
}

func excerptsOutput(excerpts []*store.Excerpt) []excerptRow {
	rows := make([]excerptRow, 0, len(excerpts))
	for _, ex := range excerpts {
		rows = append(rows, excerptRow{
			ID:          ex.ID,
			ArtifactID:  ex.ArtifactID,
			AnchorType:  ex.AnchorType,
			AnchorStart: ex.AnchorStart,
			AnchorEnd:   ex.AnchorEnd,
			Text:        ex.Text,
			TextHash:    ex.TextHash,
		})
	}
	return rows
}
