package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"checkflac/internal/config"
	"checkflac/internal/discovery"
	"checkflac/internal/jobfile"
	"checkflac/internal/logging"
	"checkflac/internal/preflight"
)

type exploreSummary struct {
	RootDirectory string `json:"root_directory"`
	JobFile       string `json:"job_file,omitempty"`
	TotalFiles    int    `json:"total_files"`
	Skipped       int    `json:"skipped_directories"`
}

func newExploreCommand(ctx *commandContext) *cobra.Command {
	var output string
	var force bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "explore DIRECTORY",
		Short: "Scan a directory for FLAC files and write a job file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			logger = logging.NewComponentLogger(logger, "explore")

			root, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve directory: %w", err)
			}

			target := strings.TrimSpace(output)
			if target != "" {
				if target, err = config.ExpandPath(target); err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
			}
			jobDir := cfg.JobDirectory()
			if target != "" {
				jobDir = filepath.Dir(target)
			}

			stderr := cmd.ErrOrStderr()
			colorize := shouldColorize(stderr)
			checks := preflight.ForExplore(root, jobDir)
			if err := preflight.Err(checks); err != nil {
				for _, line := range preflightLines(checks, colorize) {
					fmt.Fprintln(stderr, line)
				}
				return err
			}

			progress := newScanProgress(stderr, colorize && !jsonOutput)
			result, err := discovery.Scan(cmd.Context(), root, discovery.WithProgress(func(found, _ int) {
				progress.Describe(fmt.Sprintf("Scanning (%d FLAC files)", found))
				progress.Add(1)
			}))
			progress.Finish()
			if err != nil {
				return err
			}
			if result.Skipped > 0 {
				logging.WarnWithContext(logger, "skipped unreadable directories", "scan_skipped",
					logging.String(logging.FieldPath, result.Root),
					logging.Int("skipped", result.Skipped),
					logging.String(logging.FieldErrorHint, "check directory permissions"),
				)
			}

			summary := exploreSummary{
				RootDirectory: result.Root,
				TotalFiles:    len(result.Paths),
				Skipped:       result.Skipped,
			}
			if len(result.Paths) == 0 {
				if jsonOutput {
					return writeJSON(cmd, summary)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No FLAC files found")
				return nil
			}

			if target == "" {
				target = filepath.Join(jobDir, jobfile.DefaultName(result.Root, time.Now()))
			}
			if !force {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("job file already exists at %s (use --force to replace it)", target)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("check job file path: %w", err)
				}
			}

			jf, err := result.JobFile()
			if err != nil {
				return err
			}
			if err := jobfile.Save(target, jf); err != nil {
				return err
			}
			summary.JobFile = target
			logger.Info("job file written",
				logging.String(logging.FieldPath, target),
				logging.Int("files", summary.TotalFiles),
			)

			if jsonOutput {
				return writeJSON(cmd, summary)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d FLAC files in %s\n", summary.TotalFiles, summary.RootDirectory)
			fmt.Fprintf(out, "Job file written to %s\n", target)
			fmt.Fprintf(out, "Run: checkflac check %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Job file path (default: generated name in the job directory)")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing job file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
