package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"casefile/internal/config"
)

func newConfigCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage casefile configuration",
	}
	cmd.AddCommand(newConfigInitCommand(cc))
	cmd.AddCommand(newConfigShowCommand(cc))
	return cmd
}

func newConfigInitCommand(cc *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 1 {
				target = args[0]
			} else {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				target = defaultPath
			}

			if !force {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file %s already exists (use --force to overwrite)", target)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := os.WriteFile(target, []byte(config.Sample()), 0o644); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			if cc.jsonOutput() {
				return writeJSON(cmd, cfg)
			}

			rows := [][]string{
				{"Data directory", cfg.Paths.DataDir},
				{"Log directory", cfg.Paths.LogDir},
				{"Database", cfg.DatabasePath()},
				{"Log format", cfg.Logging.Format},
				{"Log level", cfg.Logging.Level},
				{"Auto-confirm threshold", formatConfidence(cfg.Gate.AutoConfirmThreshold)},
				{"Low-confidence threshold", formatConfidence(cfg.Gate.LowConfidenceThreshold)},
				{"Excerpt max length", fmt.Sprintf("%d", cfg.Excerpt.MaxLength)},
				{"Known entities", fmt.Sprintf("%d", len(cfg.Linking.Entities))},
				{"Linking rules", fmt.Sprintf("%d", len(cfg.Linking.Rules))},
				{"Sweep batch size", fmt.Sprintf("%d", cfg.Linking.SweepBatchSize)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
