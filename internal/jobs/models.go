package jobs

import (
	"errors"
	"fmt"
	"strings"
)

// Status represents the verification lifecycle of a tracked file.
type Status string

const (
	StatusToBeChecked Status = "ToBeChecked"
	StatusChecking    Status = "Checking"
	StatusOK          Status = "OK"
	StatusBad         Status = "Bad"
	StatusError       Status = "Error"
)

// VerificationFailedMessage is recorded for files whose decoded audio does not
// match the embedded checksum.
const VerificationFailedMessage = "verification failed"

var allStatuses = []Status{
	StatusToBeChecked,
	StatusChecking,
	StatusOK,
	StatusBad,
	StatusError,
}

// statusAliases maps lowercase spellings onto statuses. Older job files wrote
// statuses in upper case without separators (TOBECHECKED).
var statusAliases = func() map[string]Status {
	aliases := make(map[string]Status, len(allStatuses)*2)
	for _, status := range allStatuses {
		aliases[strings.ToLower(string(status))] = status
	}
	aliases["to_be_checked"] = StatusToBeChecked
	aliases["pending"] = StatusToBeChecked
	return aliases
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status. Matching is
// case-insensitive.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "", false
	}
	status, ok := statusAliases[normalized]
	return status, ok
}

// IsTerminal reports whether a re-run leaves the status alone. Error is not
// terminal: every check run retries it.
func (s Status) IsTerminal() bool {
	return s == StatusOK || s == StatusBad
}

// IsFailure reports whether the status represents a failed verification.
func (s Status) IsFailure() bool {
	return s == StatusBad || s == StatusError
}

// Entry is one tracked file.
type Entry struct {
	Path         string `json:"path"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// HasMessage reports whether the entry carries an error message.
func (e Entry) HasMessage() bool {
	return e.ErrorMessage != ""
}

// Statistics counts entries per status.
type Statistics struct {
	ToBeChecked int `json:"to_be_checked"`
	Checking    int `json:"checking"`
	OK          int `json:"ok"`
	Bad         int `json:"bad"`
	Error       int `json:"error"`
}

// Total returns the sum of all status counts.
func (s Statistics) Total() int {
	return s.ToBeChecked + s.Checking + s.OK + s.Bad + s.Error
}

// Checked returns the number of entries that reached a verification result.
func (s Statistics) Checked() int {
	return s.OK + s.Bad + s.Error
}

// Pending returns the number of entries that still need a result.
func (s Statistics) Pending() int {
	return s.ToBeChecked + s.Checking
}

// Count returns the count for a single status.
func (s Statistics) Count(status Status) int {
	switch status {
	case StatusToBeChecked:
		return s.ToBeChecked
	case StatusChecking:
		return s.Checking
	case StatusOK:
		return s.OK
	case StatusBad:
		return s.Bad
	case StatusError:
		return s.Error
	default:
		return 0
	}
}

func (s *Statistics) add(status Status) {
	switch status {
	case StatusToBeChecked:
		s.ToBeChecked++
	case StatusChecking:
		s.Checking++
	case StatusOK:
		s.OK++
	case StatusBad:
		s.Bad++
	case StatusError:
		s.Error++
	}
}

// ComputeStatistics scans entries and counts them per status.
func ComputeStatistics(entries []Entry) Statistics {
	var stats Statistics
	for _, entry := range entries {
		stats.add(entry.Status)
	}
	return stats
}

// JobFile is the unit of persistence: every entry discovered under one root.
type JobFile struct {
	RootDirectory string
	Entries       []Entry
}

// NewJobFile builds a job file with every path pending verification.
func NewJobFile(root string, paths []string) (JobFile, error) {
	jf := JobFile{
		RootDirectory: root,
		Entries:       make([]Entry, 0, len(paths)),
	}
	for _, path := range paths {
		jf.Entries = append(jf.Entries, Entry{Path: path, Status: StatusToBeChecked})
	}
	if err := jf.validate(); err != nil {
		return JobFile{}, err
	}
	return jf, nil
}

// TotalFiles returns the number of tracked files.
func (jf JobFile) TotalFiles() int {
	return len(jf.Entries)
}

// Statistics derives the per-status counts from the entries.
func (jf JobFile) Statistics() Statistics {
	return ComputeStatistics(jf.Entries)
}

// Clone returns a deep copy.
func (jf JobFile) Clone() JobFile {
	cp := JobFile{RootDirectory: jf.RootDirectory}
	if jf.Entries != nil {
		cp.Entries = make([]Entry, len(jf.Entries))
		copy(cp.Entries, jf.Entries)
	}
	return cp
}

// EntriesWithStatus returns the entries in stored order that match status.
func (jf JobFile) EntriesWithStatus(status Status) []Entry {
	var out []Entry
	for _, entry := range jf.Entries {
		if entry.Status == status {
			out = append(out, entry)
		}
	}
	return out
}

func (jf JobFile) validate() error {
	seen := make(map[string]int, len(jf.Entries))
	for i, entry := range jf.Entries {
		if strings.TrimSpace(entry.Path) == "" {
			return formatErrorf("jobs[%d]: empty path", i)
		}
		if prev, ok := seen[entry.Path]; ok {
			return formatErrorf("jobs[%d]: duplicate path %q (first seen at jobs[%d])", i, entry.Path, prev)
		}
		seen[entry.Path] = i
		if _, ok := ParseStatus(string(entry.Status)); !ok {
			return formatErrorf("jobs[%d]: unknown status %q", i, entry.Status)
		}
	}
	return nil
}

// normalize applies the in-memory invariants after a job file enters the
// process: Checking never survives a load and messages only accompany
// failures. It returns how many Checking entries were recovered.
func (jf *JobFile) normalize() int {
	recovered := 0
	for i := range jf.Entries {
		entry := &jf.Entries[i]
		if entry.Status == StatusChecking {
			entry.Status = StatusToBeChecked
			recovered++
		}
		if !entry.Status.IsFailure() {
			entry.ErrorMessage = ""
		}
	}
	return recovered
}

// Outcome is the result of verifying one file.
type Outcome struct {
	Status  Status
	Message string
}

// OutcomeOK reports a file that decoded fully and matched (or carried no
// reference checksum).
func OutcomeOK() Outcome {
	return Outcome{Status: StatusOK}
}

// OutcomeBad reports a checksum mismatch.
func OutcomeBad(message string) Outcome {
	if strings.TrimSpace(message) == "" {
		message = VerificationFailedMessage
	}
	return Outcome{Status: StatusBad, Message: message}
}

// OutcomeError reports a file that could not be decoded.
func OutcomeError(message string) Outcome {
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	return Outcome{Status: StatusError, Message: message}
}

// OutcomeFromError builds an Error outcome from err.
func OutcomeFromError(err error) Outcome {
	if err == nil {
		return OutcomeError("")
	}
	return OutcomeError(err.Error())
}

// Failed reports whether the outcome is Bad or Error.
func (o Outcome) Failed() bool {
	return o.Status.IsFailure()
}

func (o Outcome) validate() error {
	switch o.Status {
	case StatusOK, StatusBad, StatusError:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, o.Status)
	}
}

// ErrInvalidOutcome is returned when an outcome does not carry a result status.
var ErrInvalidOutcome = errors.New("outcome status must be OK, Bad or Error")
