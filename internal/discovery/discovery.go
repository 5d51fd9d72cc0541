// Package discovery finds FLAC files under a directory tree and builds the
// initial job file for them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"checkflac/internal/jobs"
)

// Extension is the file extension matched by Scan, compared case-insensitively.
const Extension = ".flac"

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Result is the outcome of a scan.
type Result struct {
	// Root is the absolute, cleaned scan root.
	Root string
	// Paths lists matching files in walk order.
	Paths []string
	// Skipped counts entries that could not be read. Unreadable directories
	// are skipped with everything below them.
	Skipped int
	// Visited counts every entry the walk saw.
	Visited int
}

// Option customizes a scan.
type Option func(*scanner)

// WithProgress registers a callback invoked as the walk proceeds.
func WithProgress(fn func(found, visited int)) Option {
	return func(s *scanner) {
		s.progress = fn
	}
}

type scanner struct {
	progress func(found, visited int)
}

// progressEvery limits how often the progress callback fires.
const progressEvery = 256

// Scan walks root and collects every regular file with a .flac extension.
// Symbolic links are not followed and are never reported.
func Scan(ctx context.Context, root string, opts ...Option) (Result, error) {
	s := &scanner{}
	for _, opt := range opts {
		opt(s)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Result{}, fmt.Errorf("scan %s: %w", abs, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("scan %s: %w", abs, ErrNotDirectory)
	}

	res := Result{Root: abs, Paths: []string{}}
	seen := make(map[string]struct{})
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == abs {
				return err
			}
			res.Skipped++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		res.Visited++
		if s.progress != nil && res.Visited%progressEvery == 0 {
			s.progress(len(res.Paths), res.Visited)
		}
		if !d.Type().IsRegular() || !IsFLAC(d.Name()) {
			return nil
		}
		if _, dup := seen[path]; dup {
			return nil
		}
		seen[path] = struct{}{}
		res.Paths = append(res.Paths, path)
		return nil
	})
	if walkErr != nil {
		return Result{}, fmt.Errorf("scan %s: %w", abs, walkErr)
	}
	if s.progress != nil {
		s.progress(len(res.Paths), res.Visited)
	}
	return res, nil
}

// IsFLAC reports whether name carries the FLAC extension.
func IsFLAC(name string) bool {
	return strings.EqualFold(filepath.Ext(name), Extension)
}

// JobFile builds a job file from the scan with every entry pending.
func (r Result) JobFile() (jobs.JobFile, error) {
	return NewJobFile(r.Root, r.Paths)
}

// NewJobFile builds a job file for paths under root. Paths are made absolute
// and cleaned; duplicates keep their first position.
func NewJobFile(root string, paths []string) (jobs.JobFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return jobs.JobFile{}, fmt.Errorf("resolve %s: %w", root, err)
	}
	cleaned := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return jobs.JobFile{}, fmt.Errorf("resolve %s: %w", p, err)
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		cleaned = append(cleaned, abs)
	}
	return jobs.NewJobFile(absRoot, cleaned)
}
