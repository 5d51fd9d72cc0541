package jobs

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingStore(t *testing.T, n int) *Store {
	t.Helper()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/music/%03d.flac", i)
	}
	jf, err := NewJobFile("/music", paths)
	require.NoError(t, err)
	store, err := NewStore(jf)
	require.NoError(t, err)
	return store
}

func assertStatsConsistent(t *testing.T, store *Store) {
	t.Helper()
	snap := store.Snapshot()
	stats := store.Stats()
	assert.Equal(t, ComputeStatistics(snap.Entries), stats)
	assert.Equal(t, snap.TotalFiles(), stats.Total())
}

func TestNewJobFileStartsPending(t *testing.T) {
	jf, err := NewJobFile("/music", []string{"/music/a.flac", "/music/b.flac"})
	require.NoError(t, err)
	assert.Equal(t, Statistics{ToBeChecked: 2}, jf.Statistics())
	for _, e := range jf.Entries {
		assert.Equal(t, StatusToBeChecked, e.Status)
		assert.False(t, e.HasMessage())
	}

	_, err = NewJobFile("/music", []string{"/music/a.flac", "/music/a.flac"})
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestLoadRecoversCheckingEntries(t *testing.T) {
	doc := `{
  "root_directory": "/m",
  "total_files": 3,
  "statistics": {"to_be_checked": 0, "checking": 2, "ok": 1, "bad": 0, "error": 0},
  "jobs": [
    {"path": "/m/a.flac", "status": "Checking"},
    {"path": "/m/b.flac", "status": "OK"},
    {"path": "/m/c.flac", "status": "Checking"}
  ]
}`
	store, err := Load([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Recovered())
	assert.Equal(t, Statistics{ToBeChecked: 2, OK: 1}, store.Stats())

	h, ok := store.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, "/m/a.flac", h.Path())
	assertStatsConsistent(t, store)
}

func TestClaimNextFollowsStoredOrder(t *testing.T) {
	store := pendingStore(t, 4)

	var claimed []int
	for {
		h, ok := store.ClaimNext()
		if !ok {
			break
		}
		claimed = append(claimed, h.Index())
		assertStatsConsistent(t, store)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, claimed)
	assert.Equal(t, Statistics{Checking: 4}, store.Stats())
}

func TestClaimNextSkipsFinishedEntries(t *testing.T) {
	jf := JobFile{
		RootDirectory: "/m",
		Entries: []Entry{
			{Path: "/m/a.flac", Status: StatusOK},
			{Path: "/m/b.flac", Status: StatusBad, ErrorMessage: VerificationFailedMessage},
			{Path: "/m/c.flac", Status: StatusToBeChecked},
		},
	}
	store, err := NewStore(jf)
	require.NoError(t, err)

	h, ok := store.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, "/m/c.flac", h.Path())

	_, ok = store.ClaimNext()
	assert.False(t, ok)
}

func TestRecordTransitionsClaimedEntry(t *testing.T) {
	store := pendingStore(t, 3)

	outcomes := []Outcome{
		OutcomeOK(),
		OutcomeBad(VerificationFailedMessage),
		OutcomeError("decoder failure: unexpected end of stream"),
	}
	for _, outcome := range outcomes {
		h, ok := store.ClaimNext()
		require.True(t, ok)
		require.NoError(t, store.Record(h, outcome))
		assertStatsConsistent(t, store)
	}

	assert.Equal(t, Statistics{OK: 1, Bad: 1, Error: 1}, store.Stats())
	snap := store.Snapshot()
	assert.Empty(t, snap.Entries[0].ErrorMessage)
	assert.Equal(t, VerificationFailedMessage, snap.Entries[1].ErrorMessage)
	assert.Equal(t, "decoder failure: unexpected end of stream", snap.Entries[2].ErrorMessage)
}

func TestRecordRejectsUnclaimedHandle(t *testing.T) {
	store := pendingStore(t, 2)

	h, ok := store.ClaimNext()
	require.True(t, ok)
	require.NoError(t, store.Record(h, OutcomeOK()))

	err := store.Record(h, OutcomeOK())
	assert.ErrorIs(t, err, ErrNotClaimed)

	err = store.Record(Handle{index: 1, path: "/music/001.flac"}, OutcomeOK())
	assert.ErrorIs(t, err, ErrNotClaimed, "entry 1 was never claimed")

	err = store.Record(Handle{index: 7, path: "/nowhere.flac"}, OutcomeOK())
	assert.ErrorIs(t, err, ErrNotClaimed)
}

func TestRecordRejectsNonResultOutcome(t *testing.T) {
	store := pendingStore(t, 1)
	h, ok := store.ClaimNext()
	require.True(t, ok)

	err := store.Record(h, Outcome{Status: StatusToBeChecked})
	assert.ErrorIs(t, err, ErrInvalidOutcome)
	assert.Equal(t, Statistics{Checking: 1}, store.Stats())
}

func TestResetErrorsRequeuesFailedDecodes(t *testing.T) {
	jf := JobFile{
		RootDirectory: "/m",
		Entries: []Entry{
			{Path: "/m/a.flac", Status: StatusOK},
			{Path: "/m/b.flac", Status: StatusError, ErrorMessage: "boom"},
			{Path: "/m/c.flac", Status: StatusBad, ErrorMessage: VerificationFailedMessage},
		},
	}
	store, err := NewStore(jf)
	require.NoError(t, err)

	_, ok := store.ClaimNext()
	require.False(t, ok)

	assert.Equal(t, 1, store.ResetErrors())
	snap := store.Snapshot()
	assert.Equal(t, StatusToBeChecked, snap.Entries[1].Status)
	assert.Empty(t, snap.Entries[1].ErrorMessage)
	assert.Equal(t, StatusBad, snap.Entries[2].Status, "bad files are terminal")

	h, ok := store.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, "/m/b.flac", h.Path())
	require.NoError(t, store.Record(h, OutcomeOK()))

	assert.Equal(t, 0, store.ResetErrors())
	assert.Equal(t, StatusOK, store.Snapshot().Entries[1].Status)

	assert.Equal(t, 1, store.ResetBad())
	h, ok = store.ClaimNext()
	require.True(t, ok)
	assert.Equal(t, "/m/c.flac", h.Path())
}

func TestSnapshotIsIsolatedAndVersioned(t *testing.T) {
	store := pendingStore(t, 2)
	first := store.Snapshot()

	h, ok := store.ClaimNext()
	require.True(t, ok)
	second := store.Snapshot()
	assert.Greater(t, second.Revision, first.Revision)
	assert.Equal(t, StatusToBeChecked, first.Entries[0].Status)

	second.Entries[1].Status = StatusBad
	require.NoError(t, store.Record(h, OutcomeOK()))
	assert.Equal(t, StatusToBeChecked, store.Snapshot().Entries[1].Status)
}

func TestConcurrentClaimsAreExclusive(t *testing.T) {
	const (
		entries = 500
		workers = 16
	)
	store := pendingStore(t, entries)

	var (
		mu       sync.Mutex
		recorded = make(map[string]int)
		wg       sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				h, ok := store.ClaimNext()
				if !ok {
					return
				}
				if err := store.Record(h, OutcomeOK()); err != nil {
					t.Errorf("record %s: %v", h.Path(), err)
					return
				}
				mu.Lock()
				recorded[h.Path()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, recorded, entries)
	for path, count := range recorded {
		assert.Equal(t, 1, count, "path %s recorded more than once", path)
	}
	assert.Equal(t, Statistics{OK: entries}, store.Stats())
	assertStatsConsistent(t, store)
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"ToBeChecked": StatusToBeChecked,
		"tobechecked": StatusToBeChecked,
		"CHECKING":    StatusChecking,
		"ok":          StatusOK,
		" Bad ":       StatusBad,
		"ERROR":       StatusError,
	}
	for input, want := range cases {
		got, ok := ParseStatus(input)
		require.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}
	_, ok := ParseStatus("")
	assert.False(t, ok)
	_, ok = ParseStatus("done")
	assert.False(t, ok)
}
