package preflight

import (
	"errors"
	"path/filepath"
	"strings"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// ForCheck runs the checks a check run depends on: the job file must be
// readable and writable, and its directory must accept the temp file used for
// atomic saves.
func ForCheck(jobPath string, jobSize int64) []Result {
	dir := filepath.Dir(jobPath)
	return []Result{
		CheckJobFile("Job file", jobPath),
		CheckDirectoryAccess("Job directory", dir),
		CheckFreeSpace("Job directory space", dir, uint64(max(jobSize, 0))*2),
	}
}

// ForExplore runs the checks an explore run depends on.
func ForExplore(root, jobDir string) []Result {
	return []Result{
		CheckReadableDirectory("Music directory", root),
		CheckDirectoryAccess("Job directory", jobDir),
	}
}

// Err joins the details of every failed result, or returns nil when all passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r.Name+": "+r.Detail)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.New("preflight failed: " + strings.Join(failed, "; "))
}
