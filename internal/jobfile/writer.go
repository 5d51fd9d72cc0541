package jobfile

import (
	"sync"

	"checkflac/internal/jobs"
)

// Writer saves snapshots of one job file, one writer at a time.
//
// The snapshot is taken while the writer mutex is held, so snapshots reach
// the disk in the order they were taken. A snapshot whose revision has
// already been written is skipped: an earlier save from another worker
// already covered its changes.
type Writer struct {
	path string

	mu         sync.Mutex
	written    uint64
	hasWritten bool
	saves      int
	coalesced  int
}

// NewWriter returns a Writer targeting path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the job file path.
func (w *Writer) Path() string {
	return w.path
}

// Save snapshots src and writes it unless a save of the same or a newer
// revision already happened.
func (w *Writer) Save(src jobs.Snapshotter) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := src.Snapshot()
	if w.hasWritten && snap.Revision <= w.written {
		w.coalesced++
		return nil
	}
	if err := Save(w.path, snap.JobFile); err != nil {
		return err
	}
	w.written = snap.Revision
	w.hasWritten = true
	w.saves++
	return nil
}

// Stats reports how many saves hit the disk and how many were coalesced.
func (w *Writer) Stats() (saves, coalesced int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saves, w.coalesced
}
