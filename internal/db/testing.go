// Package db provides test utilities for database operations.
//
// Tests that need a history database should use these helpers:
// in-memory SQLite for speed, cleanup through t.Cleanup.
package db

import (
	"testing"
)

// NewTestProjectDB creates an in-memory history database for testing.
// The database is automatically closed when the test completes.
// Schema migrations are applied automatically.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    pdb := db.NewTestProjectDB(t)
//	    // use pdb...
//	}
func NewTestProjectDB(t testing.TB) *ProjectDB {
	t.Helper()

	pdb, err := OpenProjectInMemory()
	if err != nil {
		t.Fatalf("create test project db: %v", err)
	}

	t.Cleanup(func() {
		_ = pdb.Close()
	})

	return pdb
}
