package testsupport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"checkflac/internal/jobs"
)

// FakeProducer returns scripted outcomes and records how it was called.
type FakeProducer struct {
	// Default is returned for paths without a scripted outcome.
	Default jobs.Outcome
	// Delay is slept inside every Verify call.
	Delay time.Duration

	mu       sync.Mutex
	outcomes map[string]jobs.Outcome
	calls    map[string]int
	order    []string

	active    atomic.Int32
	maxActive atomic.Int32
}

// NewFakeProducer returns a FakeProducer that reports OK by default.
func NewFakeProducer() *FakeProducer {
	return &FakeProducer{
		Default:  jobs.OutcomeOK(),
		outcomes: make(map[string]jobs.Outcome),
		calls:    make(map[string]int),
	}
}

// Set scripts the outcome for path.
func (p *FakeProducer) Set(path string, outcome jobs.Outcome) *FakeProducer {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes[path] = outcome
	return p
}

// Verify implements verify.Producer.
func (p *FakeProducer) Verify(_ context.Context, path string) jobs.Outcome {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		peak := p.maxActive.Load()
		if n <= peak || p.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	if p.Delay > 0 {
		time.Sleep(p.Delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[path]++
	p.order = append(p.order, path)
	if outcome, ok := p.outcomes[path]; ok {
		return outcome
	}
	return p.Default
}

// Calls returns how many times path was verified.
func (p *FakeProducer) Calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

// TotalCalls returns the number of Verify calls across all paths.
func (p *FakeProducer) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Order returns the paths in the order their verification finished.
func (p *FakeProducer) Order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// MaxConcurrent returns the highest number of overlapping Verify calls seen.
func (p *FakeProducer) MaxConcurrent() int {
	return int(p.maxActive.Load())
}
