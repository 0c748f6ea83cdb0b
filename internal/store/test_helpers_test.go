package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/legacyid/internal/sequence"
)

// createTestStore creates a new SQLite store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// provisionTestCounter inserts a counter row or fails the test.
func provisionTestCounter(t *testing.T, s *Store, name string, start, size int64) {
	t.Helper()
	created, err := s.Provision(context.Background(), sequence.Counter{
		Name:           name,
		NextBlockStart: start,
		BlockSize:      size,
	})
	if err != nil {
		t.Fatalf("Provision(%q) failed: %v", name, err)
	}
	if !created {
		t.Fatalf("Provision(%q) did not create a row", name)
	}
}
