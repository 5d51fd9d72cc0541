package jobfile

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another process holds the job file lock.
var ErrLocked = errors.New("job file is locked by another checkflac process")

// Lock is an advisory lock on a job file, held for the duration of a run.
type Lock struct {
	path string
	lock *flock.Flock
}

// LockPath returns the lock file path used for jobPath.
func LockPath(jobPath string) string {
	return jobPath + ".lock"
}

// Acquire takes the lock for jobPath without blocking.
func Acquire(jobPath string) (*Lock, error) {
	lockPath := LockPath(jobPath)
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}
	return &Lock{path: lockPath, lock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. The lock file stays on disk.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
