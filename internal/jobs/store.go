package jobs

import (
	"fmt"
	"sync"
)

// Handle identifies an entry claimed by ClaimNext.
type Handle struct {
	index int
	path  string
}

// Path returns the claimed file path.
func (h Handle) Path() string { return h.path }

// Index returns the claimed entry's position in stored order.
func (h Handle) Index() int { return h.index }

// Snapshot is a consistent copy of the store taken at one instant.
type Snapshot struct {
	JobFile
	// Revision increases with every mutation of the store.
	Revision uint64
}

// Store guards a JobFile and exposes the only mutation surface for it.
type Store struct {
	mu      sync.Mutex
	root    string
	entries []Entry
	// cursor is the lowest index that may still hold a ToBeChecked entry.
	cursor   int
	revision uint64

	recovered int
	drifted   bool
}

// Load decodes a job file into a Store. Statistics in the document are
// recomputed from the entries and Checking entries are returned to
// ToBeChecked.
func Load(data []byte) (*Store, error) {
	jf, report, err := decode(data)
	if err != nil {
		return nil, err
	}
	store := newStore(jf)
	store.recovered = report.recovered
	store.drifted = report.drifted
	return store, nil
}

// NewStore wraps an in-memory job file, applying the same validation and
// normalisation as Load.
func NewStore(jf JobFile) (*Store, error) {
	jf = jf.Clone()
	if err := jf.validate(); err != nil {
		return nil, err
	}
	recovered := jf.normalize()
	store := newStore(jf)
	store.recovered = recovered
	return store, nil
}

func newStore(jf JobFile) *Store {
	return &Store{
		root:    jf.RootDirectory,
		entries: jf.Entries,
	}
}

// Recovered returns how many entries were found in Checking when the store
// was built and returned to ToBeChecked.
func (s *Store) Recovered() int {
	return s.recovered
}

// Drifted reports whether the persisted statistics disagreed with the
// entries.
func (s *Store) Drifted() bool {
	return s.drifted
}

// RootDirectory returns the directory the entries were discovered under.
func (s *Store) RootDirectory() string {
	return s.root
}

// Len returns the number of tracked entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ClaimNext moves the lowest-index ToBeChecked entry to Checking and returns
// a handle to it. It returns false when nothing is left to claim.
func (s *Store) ClaimNext() (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := s.cursor; i < len(s.entries); i++ {
		if s.entries[i].Status != StatusToBeChecked {
			continue
		}
		s.entries[i].Status = StatusChecking
		s.entries[i].ErrorMessage = ""
		s.cursor = i + 1
		s.revision++
		return Handle{index: i, path: s.entries[i].Path}, true
	}
	s.cursor = len(s.entries)
	return Handle{}, false
}

// Record stores the outcome for a claimed entry. It fails with ErrNotClaimed
// when the handle does not refer to an entry in Checking.
func (s *Store) Record(h Handle, outcome Outcome) error {
	if err := outcome.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h.index < 0 || h.index >= len(s.entries) {
		return fmt.Errorf("%w: index %d out of range", ErrNotClaimed, h.index)
	}
	entry := &s.entries[h.index]
	if entry.Path != h.path {
		return fmt.Errorf("%w: handle path %q does not match entry %q", ErrNotClaimed, h.path, entry.Path)
	}
	if entry.Status != StatusChecking {
		return fmt.Errorf("%w: %s is %s", ErrNotClaimed, entry.Path, entry.Status)
	}
	entry.Status = outcome.Status
	entry.ErrorMessage = ""
	if outcome.Failed() {
		entry.ErrorMessage = outcome.Message
	}
	s.revision++
	return nil
}

// ResetErrors returns every Error entry to ToBeChecked so the next run
// retries it. It returns the number of entries reset.
func (s *Store) ResetErrors() int {
	return s.reset(StatusError)
}

// ResetBad returns every Bad entry to ToBeChecked. Bad is terminal by
// default; this is the explicit operator override.
func (s *Store) ResetBad() int {
	return s.reset(StatusBad)
}

func (s *Store) reset(from Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	lowest := -1
	for i := range s.entries {
		if s.entries[i].Status != from {
			continue
		}
		s.entries[i].Status = StatusToBeChecked
		s.entries[i].ErrorMessage = ""
		if lowest < 0 {
			lowest = i
		}
		count++
	}
	if count > 0 {
		if lowest < s.cursor {
			s.cursor = lowest
		}
		s.revision++
	}
	return count
}

// Stats returns the per-status counts, derived from the entries.
func (s *Store) Stats() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeStatistics(s.entries)
}

// Snapshot returns a deep copy of the job file consistent as of one instant.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	return Snapshot{
		JobFile: JobFile{
			RootDirectory: s.root,
			Entries:       entries,
		},
		Revision: s.revision,
	}
}

// Snapshotter is implemented by anything that can produce a consistent
// snapshot of a job file.
type Snapshotter interface {
	Snapshot() Snapshot
}
