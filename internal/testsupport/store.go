package testsupport

import (
	"testing"

	"checkflac/internal/config"
	"checkflac/internal/history"
)

// MustOpenHistory opens the run ledger configured in cfg and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
