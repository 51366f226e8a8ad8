package cli

import (
	"bytes"
	"path/filepath"
	"testing"
)

const ledgerCatalog = "../catalog/testdata/ledger"

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// tempStore returns a store path inside a fresh temp directory.
func tempStore(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ledgerql.db")
}

// importedStore returns a store holding the ledger catalog.
func importedStore(t *testing.T) string {
	t.Helper()
	path := tempStore(t)
	if _, err := executeCommand(t, "import", ledgerCatalog, "--store", path); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	return path
}
