package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerql/internal/schema"
	"github.com/roach88/ledgerql/internal/store"
)

func TestImport(t *testing.T) {
	path := tempStore(t)

	out, err := executeCommand(t, "import", ledgerCatalog, "--store", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 7 document(s)")
	assert.Contains(t, out, "7 changed")
	assert.Contains(t, out, "fields:PK1/{DB}_{LEDGER}_SALFLDG")

	// A second import of the same catalog changes nothing.
	out, err = executeCommand(t, "import", ledgerCatalog, "--store", path)
	require.NoError(t, err)
	assert.Contains(t, out, "0 changed")
}

func TestImport_Prune(t *testing.T) {
	path := importedStore(t)

	st, err := store.Open(path)
	require.NoError(t, err)
	extra := store.DocumentRef{Kind: schema.DocCategories, Database: "PK2"}
	_, err = st.PutDocument(context.Background(), extra, []byte("categories:\n  A01: Dept\n"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeCommand(t, "import", ledgerCatalog, "--store", path, "--prune")
	require.NoError(t, err)
	assert.Contains(t, out, "1 pruned")

	st, err = store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 7)
}

func TestImport_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	content := `package bad

databases: PK1: tables: T: fields: [{code: "X", type: "NODE", ref: "NOPE"}]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(content), 0644))

	out, err := executeCommand(t, "import", dir, "--store", tempStore(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Catalog validation failed")
	assert.Contains(t, out, "[E202]")
}

func TestImport_MissingCatalog(t *testing.T) {
	out, err := executeCommand(t, "import", filepath.Join(t.TempDir(), "none"), "--store", tempStore(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}
