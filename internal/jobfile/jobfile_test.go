package jobfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkflac/internal/jobs"
)

func sampleJobFile(t *testing.T) jobs.JobFile {
	t.Helper()
	jf, err := jobs.NewJobFile("/music", []string{"/music/a.flac", "/music/b.flac", "/music/c.flac"})
	require.NoError(t, err)
	return jf
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	jf := sampleJobFile(t)
	jf.Entries[1].Status = jobs.StatusBad
	jf.Entries[1].ErrorMessage = jobs.VerificationFailedMessage

	require.NoError(t, Save(path, jf))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, jf, got)

	store, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, jobs.Statistics{ToBeChecked: 2, Bad: 1}, store.Stats())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, FileMode, info.Mode().Perm())
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	require.NoError(t, Save(path, sampleJobFile(t)))
	require.NoError(t, Save(path, sampleJobFile(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "job.json", entries[0].Name())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadMalformedReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var formatErr *jobs.FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, path, formatErr.Path)
	assert.Contains(t, err.Error(), path)
}

func TestDefaultName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	cases := []struct {
		dir  string
		want string
	}{
		{"/music/Albums", "checkflac_Albums_20240309_140507_job.json"},
		{"/music/AC DC: Live/", "checkflac_AC_DC__Live_20240309_140507_job.json"},
		{"/", "checkflac_checkflac_20240309_140507_job.json"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DefaultName(tc.dir, now), tc.dir)
	}
}

type countingSource struct {
	store *jobs.Store
	calls int
}

func (c *countingSource) Snapshot() jobs.Snapshot {
	c.calls++
	return c.store.Snapshot()
}

func TestWriterSkipsAlreadyWrittenRevision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	store, err := jobs.NewStore(sampleJobFile(t))
	require.NoError(t, err)
	w := NewWriter(path)
	assert.Equal(t, path, w.Path())

	require.NoError(t, w.Save(store))
	require.NoError(t, w.Save(store))
	saves, coalesced := w.Stats()
	assert.Equal(t, 1, saves)
	assert.Equal(t, 1, coalesced)

	h, ok := store.ClaimNext()
	require.True(t, ok)
	require.NoError(t, store.Record(h, jobs.OutcomeOK()))
	require.NoError(t, w.Save(store))
	saves, _ = w.Stats()
	assert.Equal(t, 2, saves)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusOK, got.Entries[0].Status)
}

func TestWriterConcurrentSavesEndWithLatestState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	paths := make([]string, 64)
	for i := range paths {
		paths[i] = filepath.Join("/music", strings.Repeat("x", i+1)+".flac")
	}
	jf, err := jobs.NewJobFile("/music", paths)
	require.NoError(t, err)
	store, err := jobs.NewStore(jf)
	require.NoError(t, err)
	w := NewWriter(path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				h, ok := store.ClaimNext()
				if !ok {
					return
				}
				if err := store.Record(h, jobs.OutcomeOK()); err != nil {
					t.Error(err)
					return
				}
				if err := w.Save(store); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, jobs.Statistics{OK: 64}, got.Statistics())
}

func TestWriterPropagatesWriteErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "job.json")
	store, err := jobs.NewStore(sampleJobFile(t))
	require.NoError(t, err)
	assert.Error(t, NewWriter(path).Save(store))
}

func TestWriterSnapshotsOncePerSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	store, err := jobs.NewStore(sampleJobFile(t))
	require.NoError(t, err)
	src := &countingSource{store: store}
	w := NewWriter(path)
	require.NoError(t, w.Save(src))
	require.NoError(t, w.Save(src))
	assert.Equal(t, 2, src.calls)
}

func TestLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	first, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path+".lock", first.Path())

	_, err = Acquire(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, first.Release())
	second, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestReleaseNilLock(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
