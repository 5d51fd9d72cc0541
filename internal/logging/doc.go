// Package logging assembles structured slog loggers for checkflac.
//
// It owns the console and JSON handlers, level and output plumbing, the
// standard field keys, and context helpers that tag every line of a check run
// with its run ID. NewNop returns a logger for tests and wiring code that
// cannot fail.
package logging
