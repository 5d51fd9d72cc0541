package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"checkflac/internal/config"
	"checkflac/internal/jobfile"
	"checkflac/internal/jobs"
	"checkflac/internal/report"
)

type statsOptions struct {
	showOK      bool
	showPending bool
	fullPaths   bool
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var opts statsOptions
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats JOB_FILE",
		Short: "Show verification results from a job file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobPath, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve job file: %w", err)
			}
			jf, err := jobfile.Read(jobPath)
			if err != nil {
				return err
			}
			summary := report.Summarize(jf, report.Options{FullPaths: opts.fullPaths})
			if !opts.showOK {
				summary.OK = []report.Item{}
			}
			if !opts.showPending {
				summary.Pending = []report.Item{}
			}
			if jsonOutput {
				return writeJSON(cmd, summary)
			}
			out := cmd.OutOrStdout()
			printStats(out, summary, opts, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.showOK, "show-ok", false, "List files that verified OK")
	cmd.Flags().BoolVar(&opts.showPending, "show-pending", false, "List files not yet checked")
	cmd.Flags().BoolVar(&opts.fullPaths, "full-paths", false, "Show absolute paths instead of paths relative to the root")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printStats(out io.Writer, s report.Summary, opts statsOptions, colorize bool) {
	for _, line := range renderSectionHeader("Job File Statistics", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Root directory: %s\n", s.RootDirectory)

	rows := [][]string{
		{colorStatus(jobs.StatusOK, colorize), fmt.Sprintf("%d", s.Stats.OK), percent(s.Stats.OK, s.Total)},
		{colorStatus(jobs.StatusBad, colorize), fmt.Sprintf("%d", s.Stats.Bad), percent(s.Stats.Bad, s.Total)},
		{colorStatus(jobs.StatusError, colorize), fmt.Sprintf("%d", s.Stats.Error), percent(s.Stats.Error, s.Total)},
		{colorStatus(jobs.StatusToBeChecked, colorize), fmt.Sprintf("%d", s.Stats.Pending()), percent(s.Stats.Pending(), s.Total)},
		{"Total", fmt.Sprintf("%d", s.Total), percent(s.Total, s.Total)},
	}
	fmt.Fprintln(out, renderTable([]string{"Status", "Files", "Share"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
	if checked := s.Stats.Checked(); checked > 0 {
		fmt.Fprintf(out, "Success rate: %.2f%% of %d checked files\n", s.SuccessRate, checked)
	}

	printItems(out, "Bad files", s.Bad, true)
	printItems(out, "Error files", s.Errors, true)

	if opts.showOK {
		printItems(out, "OK files", s.OK, false)
	} else if s.Stats.OK > 0 {
		fmt.Fprintf(out, "\n%d OK files (use --show-ok to list them)\n", s.Stats.OK)
	}
	if opts.showPending {
		printItems(out, "Pending files", s.Pending, false)
	} else if pending := s.Stats.Pending(); pending > 0 {
		fmt.Fprintf(out, "\n%d pending files (use --show-pending to list them)\n", pending)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, s.Verdict())
}

func printItems(out io.Writer, title string, items []report.Item, withMessage bool) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(out, "  %s\n", item.Display)
		if withMessage && item.Message != "" {
			fmt.Fprintf(out, "    %s\n", item.Message)
		}
	}
}

func percent(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}
