package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerql/internal/schema"
	"github.com/roach88/ledgerql/internal/testutil"
)

func compileString(t *testing.T, src string) (*Catalog, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v)
}

func TestCompileBasic(t *testing.T) {
	cat, err := compileString(t, `
		aliases: LA: "{DB}_LEDGER"
		databases: PK1: {
			tables: "{DB}_LEDGER": {
				connection: "sun"
				fields: [{code: "AMOUNT", type: "N"}, {code: "D_C"}]
			}
			joins: "LA\\CA": "[CA].[X] = [LA].[X]"
			categories: A01: "Department"
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"LA": "{DB}_LEDGER"}, cat.Aliases)
	require.Len(t, cat.Databases, 1)

	db := cat.Databases[0]
	assert.Equal(t, "PK1", db.Name)
	require.Len(t, db.Tables, 1)
	assert.Equal(t, "{DB}_LEDGER", db.Tables[0].Origin)
	assert.Equal(t, "sun", db.Tables[0].Doc.Connection)
	assert.Equal(t, []schema.FieldRow{{Code: "AMOUNT", Type: "N"}, {Code: "D_C"}}, db.Tables[0].Doc.Fields)
	assert.Equal(t, []schema.JoinRow{{Code: `LA\CA`, On: "[CA].[X] = [LA].[X]"}}, db.Joins)
	assert.Equal(t, map[string]string{"A01": "Department"}, db.Categories)
}

func TestCompileRejectsUnknownFields(t *testing.T) {
	_, err := compileString(t, `
		databases: PK1: tables: T: {
			fields: [{code: "A", width: 10}]
		}
	`)
	require.Error(t, err)

	_, err = compileString(t, `views: {}`)
	require.Error(t, err)
}

func TestCompileRejectsEmptyCode(t *testing.T) {
	_, err := compileString(t, `databases: PK1: tables: T: fields: [{code: ""}]`)
	require.Error(t, err)
}

func TestCompileNodeRequiresRef(t *testing.T) {
	_, err := compileString(t, `databases: PK1: tables: T: fields: [{code: "CA", type: "NODE"}]`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "requires ref")
}

func TestLoad(t *testing.T) {
	cat, err := Load(filepath.Join("testdata", "ledger"))
	require.NoError(t, err)

	assert.Len(t, cat.Aliases, 5)
	require.Len(t, cat.Databases, 1)
	assert.Len(t, cat.Databases[0].Tables, 4)
	assert.Len(t, cat.Databases[0].Joins, 3)
	assert.Empty(t, Validate(cat))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNoFiles)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte("package bad\naliases: LA: 1\n"), 0644))
	_, err = Load(dir)
	require.Error(t, err)
}

func TestDocumentsServeRegistry(t *testing.T) {
	cat, err := Load(filepath.Join("testdata", "ledger"))
	require.NoError(t, err)

	docs, err := cat.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 7)
	assert.Equal(t, schema.DocAliases, docs[0].Kind)

	supplier, err := cat.Supplier()
	require.NoError(t, err)
	reg, err := schema.NewRegistry(supplier, schema.Options{})
	require.NoError(t, err)

	// The catalog and the YAML fixture describe the same schema.
	want := testutil.NewLedgerRegistry(t, 0)
	ctx := context.Background()
	got, err := reg.Fields(ctx, testutil.LedgerDB, "LA")
	require.NoError(t, err)
	expected, err := want.Fields(ctx, testutil.LedgerDB, "LA")
	require.NoError(t, err)
	assert.Equal(t, expected, got)

	decorated, err := reg.DecorateFields(ctx, "LA", testutil.LedgerDB)
	require.NoError(t, err)
	assert.Len(t, decorated, 17)
}

func TestDocumentsRoundTripThroughParsers(t *testing.T) {
	cat, err := Load(filepath.Join("testdata", "ledger"))
	require.NoError(t, err)

	docs, err := cat.Documents()
	require.NoError(t, err)
	for _, d := range docs {
		switch d.Kind {
		case schema.DocFields:
			_, err = schema.ParseFieldDocument(d.Body)
		case schema.DocJoins:
			_, err = schema.ParseJoinDocument(d.Body)
		case schema.DocAliases:
			_, err = schema.ParseAliasDocument(d.Body)
		case schema.DocCategories:
			_, err = schema.ParseCategoryDocument(d.Body)
		}
		assert.NoError(t, err, "%s %s/%s", d.Kind, d.Database, d.Name)
	}
}
