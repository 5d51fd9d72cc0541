package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progressReporter is the subset of a progress bar the commands drive.
type progressReporter interface {
	Add(n int)
	Describe(description string)
	Finish()
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Add(n int) {
	_ = p.bar.Add(n)
}

func (p *barProgress) Describe(description string) {
	p.bar.Describe(description)
}

func (p *barProgress) Finish() {
	_ = p.bar.Finish()
}

type noopProgress struct{}

func (noopProgress) Add(int)         {}
func (noopProgress) Describe(string) {}
func (noopProgress) Finish()         {}

// newCheckProgress returns a bar counting verified files, or a no-op
// reporter when w is not a terminal.
func newCheckProgress(w io.Writer, total int, enabled bool) progressReporter {
	if !enabled || total <= 0 {
		return noopProgress{}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Checking"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &barProgress{bar: bar}
}

// newScanProgress returns a spinner for directory scans.
func newScanProgress(w io.Writer, enabled bool) progressReporter {
	if !enabled {
		return noopProgress{}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &barProgress{bar: bar}
}
