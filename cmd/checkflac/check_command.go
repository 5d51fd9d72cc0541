package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"checkflac/internal/config"
	"checkflac/internal/engine"
	"checkflac/internal/fileutil"
	"checkflac/internal/history"
	"checkflac/internal/jobfile"
	"checkflac/internal/logging"
	"checkflac/internal/preflight"
	"checkflac/internal/report"
)

type checkOptions struct {
	workers         int
	continueOnError bool
	retryBad        bool
	history         bool
}

type checkOutput struct {
	RunID           string         `json:"run_id"`
	JobFile         string         `json:"job_file"`
	Workers         int            `json:"workers"`
	ContinueOnError bool           `json:"continue_on_error"`
	Recovered       int            `json:"recovered"`
	Reset           int            `json:"reset"`
	Checked         int            `json:"checked"`
	OK              int            `json:"ok"`
	Bad             int            `json:"bad"`
	Error           int            `json:"error"`
	Stopped         bool           `json:"stopped"`
	StopReason      string         `json:"stop_reason,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	Summary         report.Summary `json:"summary"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var threads int
	var continueOnError bool
	var retryBad bool
	var noHistory bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check JOB_FILE",
		Short: "Verify the files listed in a job file",
		Long: `Verify every pending file in a job file against its embedded MD5 signature.

Progress is saved after every file, so an interrupted check resumes where it
stopped. Files that ended with Error are retried on the next run; Bad files are
only retried with --retry-bad.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			opts := checkOptions{
				workers:         cfg.ResolvedWorkers(),
				continueOnError: cfg.Check.ContinueOnError,
				retryBad:        cfg.Check.RetryBad,
				history:         cfg.History.Enabled && !noHistory,
			}
			flags := cmd.Flags()
			if flags.Changed("threads") {
				if threads < 0 {
					return fmt.Errorf("--threads must be >= 0")
				}
				opts.workers = threads
			}
			if flags.Changed("continue-on-error") {
				opts.continueOnError = continueOnError
			}
			if flags.Changed("retry-bad") {
				opts.retryBad = retryBad
			}

			jobPath, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve job file: %w", err)
			}
			return runCheck(cmd, cfg, logger, jobPath, opts, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "Number of files verified in parallel (0 = one per CPU)")
	cmd.Flags().BoolVarP(&continueOnError, "continue-on-error", "c", false, "Keep checking after bad or unreadable files")
	cmd.Flags().BoolVar(&retryBad, "retry-bad", false, "Verify files previously marked Bad again")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runCheck(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, jobPath string, opts checkOptions, jsonOutput bool) error {
	stderr := cmd.ErrOrStderr()
	colorize := shouldColorize(stderr)

	info, err := os.Stat(jobPath)
	if err != nil {
		return fmt.Errorf("job file: %w", err)
	}
	checks := preflight.ForCheck(jobPath, info.Size())
	if err := preflight.Err(checks); err != nil {
		for _, line := range preflightLines(checks, colorize) {
			fmt.Fprintln(stderr, line)
		}
		return err
	}

	lock, err := jobfile.Acquire(jobPath)
	if err != nil {
		if errors.Is(err, jobfile.ErrLocked) {
			return fmt.Errorf("job file %s is being checked by another process", jobPath)
		}
		return err
	}
	defer lock.Release()

	runID := history.NewRunID()
	runCtx := logging.WithJobFile(logging.WithRunID(cmd.Context(), runID), jobPath)
	logger = logging.WithContext(runCtx, logging.NewComponentLogger(logger, "check"))

	if removed, err := fileutil.RemoveStaleTemps(jobPath); err != nil {
		logging.WarnWithContext(logger, "stale temp cleanup failed", "temp_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove leftover .tmp files next to the job file"),
		)
	} else if removed > 0 {
		logger.Info("removed stale temp files", logging.Int("count", removed))
	}

	store, err := jobfile.Load(jobPath)
	if err != nil {
		return err
	}
	recovered := store.Recovered()
	if recovered > 0 {
		logger.Info("resuming interrupted run", logging.Int("recovered", recovered))
	}
	if store.Drifted() {
		logging.WarnWithContext(logger, "stored statistics did not match entries", "statistics_drift",
			logging.String(logging.FieldErrorHint, "statistics are recomputed from entries on save"),
		)
	}
	reset := store.ResetErrors()
	if opts.retryBad {
		reset += store.ResetBad()
	}
	if reset > 0 {
		logger.Info("files queued for retry", logging.Int("count", reset))
	}

	pending := store.Stats().ToBeChecked
	progress := newCheckProgress(stderr, pending, colorize && !jsonOutput)
	eng := engine.New(store, jobfile.NewWriter(jobPath), newProducer(), engine.Options{
		Workers:         opts.workers,
		ContinueOnError: opts.continueOnError,
		Logger:          logger,
		Observer: func(engine.Event) {
			progress.Add(1)
		},
	})
	workers := eng.Workers()

	started := time.Now()
	result, runErr := eng.Run(runCtx)
	finished := time.Now()
	progress.Finish()

	final := store.Snapshot().JobFile
	summary := report.Summarize(final, report.Options{})

	if opts.history {
		recordHistory(cfg, logger, history.Run{
			ID:              runID,
			JobFile:         jobPath,
			RootDirectory:   final.RootDirectory,
			StartedAt:       started,
			FinishedAt:      finished,
			Workers:         workers,
			ContinueOnError: opts.continueOnError,
			Checked:         result.Checked,
			OK:              result.OK,
			Bad:             result.Bad,
			Error:           result.Error,
			Pending:         summary.Stats.Pending(),
			Stopped:         result.Stopped,
			StopReason:      result.StopReason,
			ErrorMessage:    errorMessage(runErr),
		})
	}

	if jsonOutput {
		if err := writeJSON(cmd, checkOutput{
			RunID:           runID,
			JobFile:         jobPath,
			Workers:         workers,
			ContinueOnError: opts.continueOnError,
			Recovered:       recovered,
			Reset:           reset,
			Checked:         result.Checked,
			OK:              result.OK,
			Bad:             result.Bad,
			Error:           result.Error,
			Stopped:         result.Stopped,
			StopReason:      result.StopReason,
			DurationSeconds: result.Duration.Seconds(),
			Summary:         summary,
		}); err != nil {
			return err
		}
	} else {
		printCheckSummary(cmd.OutOrStdout(), pending, result, summary, shouldColorize(cmd.OutOrStdout()))
	}

	if runErr != nil {
		return fmt.Errorf("check %s: %w", jobPath, runErr)
	}
	if result.StopReason == engine.StopCancelled {
		return newExitError(exitInterrupted, "Check interrupted; progress saved to %s", jobPath)
	}
	if result.Failed() && !opts.continueOnError {
		return newExitError(exitFailure, "Check completed with %d errors and %d bad files", result.Error, result.Bad)
	}
	return nil
}

func printCheckSummary(out io.Writer, pending int, result engine.Result, summary report.Summary, colorize bool) {
	if pending == 0 && result.Checked == 0 {
		fmt.Fprintln(out, "No files to check!")
		fmt.Fprintln(out, summary.Verdict())
		return
	}

	for _, line := range renderSectionHeader("Check Summary", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Checked", statusInfo, fmt.Sprintf("%d of %d pending files", result.Checked, pending), colorize))
	fmt.Fprintln(out, renderStatusLine("OK", statusOK, fmt.Sprintf("%d", result.OK), colorize))
	fmt.Fprintln(out, renderStatusLine("Bad", countKind(result.Bad), fmt.Sprintf("%d", result.Bad), colorize))
	fmt.Fprintln(out, renderStatusLine("Error", countKind(result.Error), fmt.Sprintf("%d", result.Error), colorize))
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, result.Duration.Round(time.Millisecond).String(), colorize))
	if result.Stopped {
		fmt.Fprintln(out, renderStatusLine("Stopped", statusWarn, stopMessage(result.StopReason), colorize))
	}
	if remaining := summary.Stats.Pending(); remaining > 0 {
		fmt.Fprintln(out, renderStatusLine("Remaining", statusWarn, fmt.Sprintf("%d files still pending", remaining), colorize))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, summary.Verdict())
}

func countKind(n int) statusKind {
	if n > 0 {
		return statusError
	}
	return statusOK
}

func stopMessage(reason string) string {
	switch reason {
	case engine.StopFailure:
		return "after the first failed file (use --continue-on-error to check everything)"
	case engine.StopCancelled:
		return "interrupted"
	default:
		return reason
	}
}

func recordHistory(cfg *config.Config, logger *slog.Logger, run history.Run) {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set history.enabled = false to skip the run ledger"),
		)
		return
	}
	defer store.Close()
	if _, err := store.Record(context.Background(), run); err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_record_failed", logging.Error(err))
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

