package jobs

import (
	"errors"
	"fmt"
)

// ErrNotClaimed is returned by Record when the handle does not point at an
// entry currently in Checking. It signals a programming error, not a file
// problem.
var ErrNotClaimed = errors.New("entry is not claimed")

// FormatError reports a job file that is malformed or internally
// inconsistent.
type FormatError struct {
	// Path names the job file when known.
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "invalid job file"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// WithPath returns err with the job file path attached when err is a
// FormatError.
func WithPath(err error, path string) error {
	var fe *FormatError
	if errors.As(err, &fe) && fe.Path == "" {
		cp := *fe
		cp.Path = path
		return &cp
	}
	return err
}

func formatErrorf(format string, args ...any) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}
