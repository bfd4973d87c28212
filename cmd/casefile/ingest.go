package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"casefile/internal/config"
	"casefile/internal/ingest"
	"casefile/internal/store"
)

type ingestOutcome struct {
	Source     string             `json:"source"`
	SourceID   string             `json:"source_id"`
	Status     store.IngestStatus `json:"status"`
	ArtifactID int64              `json:"artifact_id,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func newIngestCommand(cc *commandContext) *cobra.Command {
	var sweepAfter bool

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Accept normalized producer events from a JSON file or stdin",
		Long: `Reads one event object or an array of event objects and persists each
as an immutable artifact. Replayed events are detected by (source, source_id)
and reported as unchanged or updated instead of duplicated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := readEvents(cmd, args)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return fmt.Errorf("no events to ingest")
			}

			return cc.withStore(func(st *store.Store, cfg *config.Config) error {
				gateway := cc.newGateway(st)
				outcomes := make([]ingestOutcome, 0, len(events))
				failures := 0
				for _, event := range events {
					outcome := ingestOutcome{Source: event.Source, SourceID: event.SourceID}
					result, err := gateway.AcceptEvent(cmd.Context(), event)
					if err != nil {
						outcome.Error = err.Error()
						failures++
					} else {
						outcome.Status = result.Status
						outcome.ArtifactID = result.ArtifactID
					}
					outcomes = append(outcomes, outcome)
				}

				var sweep *linkSweepOutput
				if sweepAfter {
					linker := cc.newLinker(st, cfg)
					summary, err := linker.Sweep(cmd.Context(), cfg.Linking.SweepBatchSize)
					if err != nil {
						return err
					}
					sweep = &linkSweepOutput{Summary: summary}
				}

				if cc.jsonOutput() {
					payload := struct {
						Events []ingestOutcome  `json:"events"`
						Sweep  *linkSweepOutput `json:"sweep,omitempty"`
					}{Events: outcomes, Sweep: sweep}
					if err := writeJSON(cmd, payload); err != nil {
						return err
					}
				} else {
					rows := make([][]string, 0, len(outcomes))
					for _, o := range outcomes {
						status := string(o.Status)
						if o.Error != "" {
							status = "error: " + o.Error
						}
						rows = append(rows, []string{
							o.Source,
							o.SourceID,
							status,
							formatArtifactID(o.ArtifactID),
						})
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Source", "Source ID", "Status", "Artifact"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
					))
					if sweep != nil {
						printSweepSummary(cmd, sweep.Summary)
					}
				}

				if failures > 0 {
					return fmt.Errorf("%d of %d events failed", failures, len(outcomes))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&sweepAfter, "sweep", false, "Run a linking sweep after ingesting")
	return cmd
}

// readEvents accepts either a single JSON event object or a JSON array of
// events, from the named file or stdin when the argument is absent or "-".
func readEvents(cmd *cobra.Command, args []string) ([]ingest.Event, error) {
	var reader io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open events file: %w", err)
		}
		defer f.Close()
		reader = f
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	var events []ingest.Event
	if err := json.Unmarshal(data, &events); err == nil {
		return events, nil
	}
	var single ingest.Event
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	return []ingest.Event{single}, nil
}

func formatArtifactID(id int64) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}
