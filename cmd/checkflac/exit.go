package main

import "fmt"

const (
	exitFailure     = 1
	exitInterrupted = 130
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func newExitError(code int, format string, args ...any) *exitError {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// ExitCode returns the process exit code.
func (e *exitError) ExitCode() int {
	return e.code
}
