package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/testutil"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedStoreOptions makes report ids and timestamps deterministic.
func fixedStoreOptions(ids ...string) []Option {
	clock := testutil.MustParseClock("2026-01-01T12:00:00Z")
	return []Option{
		WithIDGenerator(run.NewFixedGenerator(ids...)),
		WithClock(clock.Now),
	}
}
