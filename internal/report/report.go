// Package report turns a job file into the summary shown by the stats and
// check commands. It never modifies the job file.
package report

import (
	"fmt"

	"checkflac/internal/jobs"
	"checkflac/internal/textutil"
)

// Options controls how paths are displayed.
type Options struct {
	// FullPaths shows absolute paths instead of paths relative to the root.
	FullPaths bool
}

// Item is one listed file.
type Item struct {
	Path    string      `json:"path"`
	Display string      `json:"display"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"error_message,omitempty"`
}

// Summary is the read-only view of a job file.
type Summary struct {
	RootDirectory string          `json:"root_directory"`
	Total         int             `json:"total_files"`
	Stats         jobs.Statistics `json:"statistics"`
	// SuccessRate is OK as a percentage of checked files. It is zero when
	// nothing has been checked.
	SuccessRate float64 `json:"success_rate"`
	Bad         []Item  `json:"bad"`
	Errors      []Item  `json:"errors"`
	OK          []Item  `json:"ok"`
	Pending     []Item  `json:"pending"`
}

// Summarize derives counts and per-status listings from jf. Counts come from
// the entries, never from stored statistics.
func Summarize(jf jobs.JobFile, opts Options) Summary {
	stats := jf.Statistics()
	s := Summary{
		RootDirectory: jf.RootDirectory,
		Total:         jf.TotalFiles(),
		Stats:         stats,
		SuccessRate:   SuccessRate(stats),
		Bad:           []Item{},
		Errors:        []Item{},
		OK:            []Item{},
		Pending:       []Item{},
	}

	for _, entry := range jf.Entries {
		item := Item{
			Path:    entry.Path,
			Display: displayPath(jf.RootDirectory, entry.Path, opts),
			Status:  entry.Status,
		}
		if entry.Status.IsFailure() {
			item.Message = entry.ErrorMessage
		}
		switch entry.Status {
		case jobs.StatusBad:
			s.Bad = append(s.Bad, item)
		case jobs.StatusError:
			s.Errors = append(s.Errors, item)
		case jobs.StatusOK:
			s.OK = append(s.OK, item)
		default:
			s.Pending = append(s.Pending, item)
		}
	}
	return s
}

// SuccessRate returns OK as a percentage of checked entries.
func SuccessRate(stats jobs.Statistics) float64 {
	checked := stats.Checked()
	if checked == 0 {
		return 0
	}
	return float64(stats.OK) / float64(checked) * 100
}

// HasFailures reports whether any entry is Bad or Error.
func (s Summary) HasFailures() bool {
	return s.Stats.Bad > 0 || s.Stats.Error > 0
}

// Complete reports whether every entry has a result.
func (s Summary) Complete() bool {
	return s.Stats.Pending() == 0
}

// Verdict is the closing line of a report.
func (s Summary) Verdict() string {
	switch {
	case s.HasFailures():
		return fmt.Sprintf("Found %d bad and %d error files.", s.Stats.Bad, s.Stats.Error)
	case s.Total == 0:
		return "Job file is empty."
	case s.Complete():
		return "All files verified successfully!"
	default:
		return fmt.Sprintf("No issues found in checked files. %d files pending.", s.Stats.Pending())
	}
}

func displayPath(root, path string, opts Options) string {
	if opts.FullPaths {
		return path
	}
	return textutil.RelativeTo(root, path)
}
