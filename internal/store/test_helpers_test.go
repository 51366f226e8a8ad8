package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/ledgerql/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
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

// createLedgerStore creates a test store holding the ledger fixture documents.
func createLedgerStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	for _, doc := range testutil.LedgerDocuments() {
		ref := DocumentRef{Kind: doc.Kind, Database: doc.Database, Name: doc.Name}
		if _, err := s.PutDocument(context.Background(), ref, doc.Body); err != nil {
			t.Fatalf("PutDocument(%s) failed: %v", ref, err)
		}
	}
	return s
}

// createTestCompilation creates a compilation with minimal required fields.
func createTestCompilation(formula string, params ...string) Compilation {
	return Compilation{
		RequestID: "req-1",
		Formula:   formula,
		Params:    params,
		Database:  "PK1",
		Table:     "LA",
		SQL:       "SELECT *\nFROM PK1_A_SALFLDG [LA]",
	}
}
