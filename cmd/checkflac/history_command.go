package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"checkflac/internal/config"
	"checkflac/internal/history"
)

type historyEntry struct {
	ID              string  `json:"id"`
	JobFile         string  `json:"job_file"`
	RootDirectory   string  `json:"root_directory"`
	StartedAt       string  `json:"started_at"`
	DurationSeconds float64 `json:"duration_seconds"`
	Workers         int     `json:"workers"`
	Checked         int     `json:"checked"`
	OK              int     `json:"ok"`
	Bad             int     `json:"bad"`
	Error           int     `json:"error"`
	Pending         int     `json:"pending"`
	StopReason      string  `json:"stop_reason,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	historyCmd := &cobra.Command{
		Use:   "history [JOB_FILE]",
		Short: "Show recorded check runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			opts := history.ListOptions{Limit: limit}
			if len(args) == 1 {
				if opts.JobFile, err = config.ExpandPath(args[0]); err != nil {
					return fmt.Errorf("resolve job file: %w", err)
				}
			}
			runs, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}

			entries := make([]historyEntry, 0, len(runs))
			for _, run := range runs {
				entries = append(entries, historyEntry{
					ID:              run.ID,
					JobFile:         run.JobFile,
					RootDirectory:   run.RootDirectory,
					StartedAt:       run.StartedAt.Format(time.RFC3339),
					DurationSeconds: run.Duration().Seconds(),
					Workers:         run.Workers,
					Checked:         run.Checked,
					OK:              run.OK,
					Bad:             run.Bad,
					Error:           run.Error,
					Pending:         run.Pending,
					StopReason:      run.StopReason,
					ErrorMessage:    run.ErrorMessage,
				})
			}
			if jsonOutput {
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.JobFile,
					fmt.Sprintf("%d", run.Checked),
					fmt.Sprintf("%d", run.OK),
					fmt.Sprintf("%d", run.Bad),
					fmt.Sprintf("%d", run.Error),
					fmt.Sprintf("%d", run.Pending),
					run.Duration().Round(time.Second).String(),
					runOutcome(run),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Job File", "Checked", "OK", "Bad", "Error", "Pending", "Duration", "Outcome"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 = all)")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return fmt.Errorf("--keep must be >= 0")
			}
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs, kept the newest %d\n", removed, keep)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 100, "Number of most recent runs to keep")
	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("run history is disabled (set history.enabled = true)")
	}
	return history.Open(cfg.History.Path)
}

func runOutcome(run history.Run) string {
	switch {
	case run.ErrorMessage != "":
		return "aborted: " + run.ErrorMessage
	case run.Stopped:
		return "stopped: " + run.StopReason
	case run.Bad > 0 || run.Error > 0:
		return "failures"
	default:
		return "ok"
	}
}
