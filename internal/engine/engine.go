package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"checkflac/internal/jobs"
	"checkflac/internal/logging"
	"checkflac/internal/verify"
)

// Saver persists the state of a store. jobfile.Writer implements it.
type Saver interface {
	Save(src jobs.Snapshotter) error
}

// Event describes one recorded outcome.
type Event struct {
	Worker  int
	Path    string
	Outcome jobs.Outcome
	Stats   jobs.Statistics
}

// Observer is called after each outcome is recorded and saved. It may be
// called from several workers at once.
type Observer func(Event)

// Options configures a run.
type Options struct {
	// Workers is the number of concurrent verifications. Zero or less means
	// one per CPU.
	Workers int
	// ContinueOnError keeps the run going after Bad or Error outcomes.
	ContinueOnError bool
	Logger          *slog.Logger
	Observer        Observer
}

// Stop reasons reported in Result.StopReason.
const (
	StopFailure   = "failure"
	StopCancelled = "cancelled"
	StopFatal     = "fatal error"
)

// Result summarizes a run. The counts cover outcomes recorded by this run only.
type Result struct {
	Checked    int
	OK         int
	Bad        int
	Error      int
	Stopped    bool
	StopReason string
	Duration   time.Duration
}

// Failed reports whether any file recorded by this run ended Bad or Error.
func (r Result) Failed() bool {
	return r.Bad > 0 || r.Error > 0
}

// Engine drives one check run over a store.
type Engine struct {
	store    *jobs.Store
	saver    Saver
	producer verify.Producer
	opts     Options
	logger   *slog.Logger
}

// New wires an engine. The store is shared with the saver; the engine is the
// only writer while Run is active.
func New(store *jobs.Store, saver Saver, producer verify.Producer, opts Options) *Engine {
	return &Engine{
		store:    store,
		saver:    saver,
		producer: producer,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "engine"),
	}
}

// Workers returns the number of workers Run will start.
func (e *Engine) Workers() int {
	n := e.opts.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if pending := e.store.Stats().ToBeChecked; pending < n {
		n = pending
	}
	if n < 1 {
		n = 1
	}
	return n
}

// run holds the state shared by the workers of one Run call.
type run struct {
	stopped atomic.Bool

	mu     sync.Mutex
	reason string
	result Result
}

func (r *run) stop(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reason == "" {
		r.reason = reason
	}
	r.stopped.Store(true)
}

func (r *run) tally(status jobs.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Checked++
	switch status {
	case jobs.StatusOK:
		r.result.OK++
	case jobs.StatusBad:
		r.result.Bad++
	case jobs.StatusError:
		r.result.Error++
	}
}

func (r *run) snapshot() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.result
	res.Stopped = r.stopped.Load()
	res.StopReason = r.reason
	return res
}

// Run verifies pending entries until none are left or the run stops. The
// returned error is non-nil only for persistence failures and broken store
// invariants; failed verifications are reported through Result.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	logger := logging.WithContext(ctx, e.logger)
	workers := e.Workers()
	state := &run{}

	logger.Info("check run starting", logging.Args(
		logging.Int("workers", workers),
		logging.Int("pending", e.store.Stats().ToBeChecked),
		logging.Bool("continue_on_error", e.opts.ContinueOnError),
	)...)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		worker := w
		g.Go(func() error {
			return e.work(ctx, worker, state, logger.With(logging.Args(logging.Int(logging.FieldWorker, worker))...))
		})
	}
	err := g.Wait()

	if err == nil {
		if saveErr := e.saver.Save(e.store); saveErr != nil {
			err = fmt.Errorf("save job file: %w", saveErr)
			state.stop(StopFatal)
		}
	}

	res := state.snapshot()
	res.Duration = time.Since(start)

	attrs := []logging.Attr{
		logging.Int("checked", res.Checked),
		logging.Int("ok", res.OK),
		logging.Int("bad", res.Bad),
		logging.Int("error", res.Error),
		logging.Duration("duration", res.Duration),
	}
	if res.Stopped {
		attrs = append(attrs, logging.String("stop_reason", res.StopReason))
	}
	if err != nil {
		logging.ErrorWithContext(logger, "check run aborted", "run_aborted", append(attrs, logging.Error(err))...)
	} else {
		logger.Info("check run finished", logging.Args(attrs...)...)
	}
	return res, err
}

func (e *Engine) work(ctx context.Context, worker int, state *run, logger *slog.Logger) error {
	for {
		if state.stopped.Load() {
			return nil
		}
		if ctx.Err() != nil {
			state.stop(StopCancelled)
			return nil
		}

		h, ok := e.store.ClaimNext()
		if !ok {
			return nil
		}

		outcome := e.verify(ctx, h.Path())
		if err := e.store.Record(h, outcome); err != nil {
			state.stop(StopFatal)
			return fmt.Errorf("record %s: %w", h.Path(), err)
		}
		state.tally(outcome.Status)

		if err := e.saver.Save(e.store); err != nil {
			state.stop(StopFatal)
			return fmt.Errorf("save job file: %w", err)
		}

		e.report(logger, worker, h.Path(), outcome)

		if outcome.Failed() && !e.opts.ContinueOnError {
			state.stop(StopFailure)
		}
	}
}

// verify calls the producer, turning a panic into an Error outcome so the
// claimed entry is always recorded.
func (e *Engine) verify(ctx context.Context, path string) (outcome jobs.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = jobs.OutcomeError(fmt.Sprintf("verifier panic: %v", r))
		}
	}()
	return e.producer.Verify(ctx, path)
}

func (e *Engine) report(logger *slog.Logger, worker int, path string, outcome jobs.Outcome) {
	attrs := []logging.Attr{
		logging.String(logging.FieldPath, path),
		logging.String(logging.FieldStatus, string(outcome.Status)),
	}
	if outcome.Failed() {
		logging.WarnWithContext(logger, "file failed verification", "verification_"+statusEvent(outcome.Status),
			append(attrs,
				logging.String("message", outcome.Message),
				logging.String(logging.FieldErrorHint, hintFor(outcome.Status)),
			)...)
	} else {
		logger.Debug("file verified", logging.Args(attrs...)...)
	}

	if e.opts.Observer != nil {
		e.opts.Observer(Event{
			Worker:  worker,
			Path:    path,
			Outcome: outcome,
			Stats:   e.store.Stats(),
		})
	}
}

func statusEvent(status jobs.Status) string {
	if status == jobs.StatusBad {
		return "bad"
	}
	return "error"
}

func hintFor(status jobs.Status) string {
	if status == jobs.StatusBad {
		return "restore the file from a backup; its audio does not match the stored checksum"
	}
	return "check the file is readable and is a FLAC stream; it is retried on the next run"
}
