package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run is one recorded check run.
type Run struct {
	ID              string
	JobFile         string
	RootDirectory   string
	StartedAt       time.Time
	FinishedAt      time.Time
	Workers         int
	ContinueOnError bool
	Checked         int
	OK              int
	Bad             int
	Error           int
	// Pending is the number of entries still unchecked when the run ended.
	Pending    int
	Stopped    bool
	StopReason string
	// ErrorMessage is set when the run aborted on a persistence failure.
	ErrorMessage string
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// timeLayout has fixed-width fractional seconds so stored timestamps sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, job_file, root_directory, started_at, finished_at, workers,
	continue_on_error, checked, ok, bad, error, pending, stopped, stop_reason, error_message`

// Record inserts run. An empty ID is replaced by a new one, which is returned.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if strings.TrimSpace(run.JobFile) == "" {
		return "", errors.New("record run: job file is required")
	}
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.JobFile,
		run.RootDirectory,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.Workers,
		boolToInt(run.ContinueOnError),
		run.Checked,
		run.OK,
		run.Bad,
		run.Error,
		run.Pending,
		boolToInt(run.Stopped),
		nullableString(run.StopReason),
		nullableString(run.ErrorMessage),
	)
	if err != nil {
		return "", fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// ListOptions filters List.
type ListOptions struct {
	// JobFile restricts results to one job file when set.
	JobFile string
	// Limit caps the number of runs returned; zero means no limit.
	Limit int
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if opts.JobFile != "" {
		query += ` WHERE job_file = ?`
		args = append(args, opts.JobFile)
	}
	query += ` ORDER BY started_at DESC, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns the run with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run             Run
		startedAt       string
		finishedAt      string
		continueOnError int
		stopped         int
		stopReason      sql.NullString
		errorMessage    sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.JobFile,
		&run.RootDirectory,
		&startedAt,
		&finishedAt,
		&run.Workers,
		&continueOnError,
		&run.Checked,
		&run.OK,
		&run.Bad,
		&run.Error,
		&run.Pending,
		&stopped,
		&stopReason,
		&errorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Run{}, fmt.Errorf("parse started_at for run %s: %w", run.ID, err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return Run{}, fmt.Errorf("parse finished_at for run %s: %w", run.ID, err)
	}
	run.ContinueOnError = continueOnError != 0
	run.Stopped = stopped != 0
	run.StopReason = stopReason.String
	run.ErrorMessage = errorMessage.String
	return run, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
