package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"checkflac/internal/jobfile"
	"checkflac/internal/jobs"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTree creates each relative path under root as a small file and
// returns the absolute paths in the order given.
func WriteTree(t testing.TB, root string, rel ...string) []string {
	t.Helper()

	paths := make([]string, 0, len(rel))
	for _, r := range rel {
		path := filepath.Join(root, filepath.FromSlash(r))
		WriteFile(t, path, 16)
		paths = append(paths, path)
	}
	return paths
}

// WriteJobFile saves a job file with every path pending and returns its
// location.
func WriteJobFile(t testing.TB, dir, root string, paths []string) string {
	t.Helper()

	jf, err := jobs.NewJobFile(root, paths)
	if err != nil {
		t.Fatalf("jobs.NewJobFile: %v", err)
	}
	return SaveJobFile(t, dir, jf)
}

// SaveJobFile writes jf to dir/job.json and returns the path.
func SaveJobFile(t testing.TB, dir string, jf jobs.JobFile) string {
	t.Helper()

	path := filepath.Join(dir, "job.json")
	if err := jobfile.Save(path, jf); err != nil {
		t.Fatalf("jobfile.Save: %v", err)
	}
	return path
}
