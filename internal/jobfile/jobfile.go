package jobfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"checkflac/internal/fileutil"
	"checkflac/internal/jobs"
	"checkflac/internal/textutil"
)

// FileMode is the permission used for job files.
const FileMode os.FileMode = 0o644

// Read loads and validates the job file at path without building a Store.
func Read(path string) (jobs.JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return jobs.JobFile{}, fmt.Errorf("read job file %s: %w", path, err)
	}
	jf, err := jobs.Decode(data)
	if err != nil {
		return jobs.JobFile{}, jobs.WithPath(err, path)
	}
	return jf, nil
}

// Load reads the job file at path into a Store.
func Load(path string) (*jobs.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file %s: %w", path, err)
	}
	store, err := jobs.Load(data)
	if err != nil {
		return nil, jobs.WithPath(err, path)
	}
	return store, nil
}

// Save atomically writes jf to path.
func Save(path string, jf jobs.JobFile) error {
	data, err := jobs.Encode(jf)
	if err != nil {
		return fmt.Errorf("serialize job file %s: %w", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, FileMode); err != nil {
		return fmt.Errorf("write job file: %w", err)
	}
	return nil
}

// DefaultName builds the job file name used when the operator does not pick
// one: checkflac_<directory>_<YYYYMMDD_HHMMSS>_job.json.
func DefaultName(dir string, now time.Time) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == string(filepath.Separator) || base == "." {
		base = ""
	}
	token := textutil.SanitizeToken(base, "checkflac")
	return fmt.Sprintf("checkflac_%s_%s_job.json", token, now.Format("20060102_150405"))
}
