package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// tempPattern names the scratch files created next to target.
func tempPattern(target string) string {
	return "." + filepath.Base(target) + ".tmp-*"
}

// WriteFileAtomic replaces path with data so that readers observe either the
// previous content or the new content, never a mix. The data is written to a
// temporary file in the same directory, flushed to disk and renamed over the
// target; the parent directory is synced afterwards so the rename survives a
// crash.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, tempPattern(path))
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	if err := SyncDir(dir); err != nil {
		return fmt.Errorf("sync directory for %s: %w", path, err)
	}
	return nil
}

// SyncDir flushes directory metadata (renames, creations) to disk. It is a
// no-op on Windows, where directories cannot be opened for syncing.
func SyncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}

// RemoveStaleTemps deletes scratch files left next to path by an interrupted
// WriteFileAtomic. Callers must hold whatever lock guards path. It returns the
// number of files removed.
func RemoveStaleTemps(path string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), tempPattern(path)))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove stale temp %s: %w", match, err)
		}
		removed++
	}
	return removed, nil
}
