package schema_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerql/internal/fieldpath"
	"github.com/roach88/ledgerql/internal/schema"
	"github.com/roach88/ledgerql/internal/testutil"
)

func codes(fields []fieldpath.FieldPath) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Code
	}
	return out
}

func TestRegistry_FieldsExpandsNodes(t *testing.T) {
	reg := testutil.NewLedgerRegistry(t, 0)

	fields, err := reg.Fields(context.Background(), testutil.LedgerDB, "LA")
	require.NoError(t, err)

	assert.Equal(t, []string{
		`LA\ACCNT_CODE`,
		`LA\PERIOD`,
		`LA\TRANS_DATETIME`,
		`LA\AMOUNT`,
		`LA\D_C`,
		`LA\TREFERENCE`,
		`LA\JRNAL_SRCE`,
		`LA\ANAL_T1`,
		`LA\A01`,
		`LA\A02`,
		`LA\CA\ACNT_CODE`,
		`LA\CA\DESCR`,
		`LA\CA\X1\TREF`,
		`LA\CA\X1\NAME`,
		`LA\T01\ANL_CODE`,
		`LA\T01\NAME`,
		`LA\T02\ANL_CODE`,
		`LA\T02\NAME`,
	}, codes(fields))

	byCode := make(map[string]fieldpath.FieldPath)
	for _, f := range fields {
		byCode[f.Code] = f
	}
	assert.Equal(t, "Account Code", byCode[`LA\ACCNT_CODE`].Description)
	assert.Equal(t, fieldpath.TypePeriodNumeric, byCode[`LA\PERIOD`].Type)
	assert.Equal(t, fieldpath.TypeSortableDate, byCode[`LA\TRANS_DATETIME`].Type)
	assert.Equal(t, "Analysis Name", byCode[`LA\CA\X1\NAME`].Description)
	assert.Equal(t, "CAX1", byCode[`LA\CA\X1\NAME`].Parent())

	src := byCode[`LA\JRNAL_SRCE`]
	assert.True(t, src.IsText())
	assert.Equal(t, 1, src.SubOffset)
	assert.Equal(t, 3, src.SubLength)
}

func TestRegistry_FieldsReturnsCopy(t *testing.T) {
	reg := testutil.NewLedgerRegistry(t, 0)
	ctx := context.Background()

	first, err := reg.Fields(ctx, testutil.LedgerDB, "LA")
	require.NoError(t, err)
	first[0] = fieldpath.Empty

	second, err := reg.Fields(ctx, testutil.LedgerDB, "LA")
	require.NoError(t, err)
	assert.Equal(t, `LA\ACCNT_CODE`, second[0].Code)
}

func TestRegistry_Field(t *testing.T) {
	reg := testutil.NewLedgerRegistry(t, 0)
	ctx := context.Background()

	f, err := reg.Field(ctx, testutil.LedgerDB, "LA", `CA\DESCR`)
	require.NoError(t, err)
	assert.Equal(t, `LA\CA\DESCR`, f.Code)

	f, err = reg.Field(ctx, testutil.LedgerDB, "LA", `LA\AMOUNT`)
	require.NoError(t, err)
	assert.Equal(t, "Base Amount", f.Description)

	f, err = reg.Field(ctx, testutil.LedgerDB, "LA", "amount")
	require.NoError(t, err)
	assert.Equal(t, `LA\AMOUNT`, f.Code)

	_, err = reg.Field(ctx, testutil.LedgerDB, "LA", "NOPE")
	require.Error(t, err)
	assert.True(t, schema.IsUnknownField(err))
}

func TestRegistry_CacheSingleSlot(t *testing.T) {
	supplier := testutil.NewLedgerSupplier()
	reg, err := schema.NewRegistry(supplier, schema.Options{CacheSize: 1})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = reg.Fields(ctx, testutil.LedgerDB, "LA")
	require.NoError(t, err)
	fetched := supplier.Fetches()

	// Same table: hit, nothing fetched.
	_, err = reg.Fields(ctx, testutil.LedgerDB, "LA")
	require.NoError(t, err)
	assert.Equal(t, fetched, supplier.Fetches())
	assert.Equal(t, schema.Stats{Hits: 1, Misses: 1, Entries: 1}, reg.Stats())

	// Another table evicts the only slot.
	_, err = reg.Fields(ctx, testutil.LedgerDB, "CA")
	require.NoError(t, err)
	_, err = reg.Fields(ctx, testutil.LedgerDB, "LA")
	require.NoError(t, err)
	assert.Equal(t, schema.Stats{Hits: 1, Misses: 3, Entries: 1}, reg.Stats())
}

func TestRegistry_CacheKeepsSeveralTables(t *testing.T) {
	reg := testutil.NewLedgerRegistry(t, 4)
	ctx := context.Background()

	for _, table := range []string{"LA", "CA", "LA", "CA"} {
		_, err := reg.Fields(ctx, testutil.LedgerDB, table)
		require.NoError(t, err)
	}
	assert.Equal(t, schema.Stats{Hits: 2, Misses: 2, Entries: 2}, reg.Stats())
}

func TestRegistry_Invalidate(t *testing.T) {
	supplier := testutil.NewLedgerSupplier()
	reg, err := schema.NewRegistry(supplier, schema.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = reg.Fields(ctx, testutil.LedgerDB, "CA")
	require.NoError(t, err)

	supplier.SetFieldDocument(testutil.LedgerDB, testutil.AccountOrigin, []byte(`
table: ACNT
fields:
  - code: ONLY
`))

	fields, err := reg.Fields(ctx, testutil.LedgerDB, "CA")
	require.NoError(t, err)
	assert.Len(t, fields, 4, "cached value survives until Invalidate")

	reg.Invalidate()
	fields, err = reg.Fields(ctx, testutil.LedgerDB, "CA")
	require.NoError(t, err)
	assert.Equal(t, []string{`CA\ONLY`}, codes(fields))
	assert.Equal(t, 1, reg.Stats().Entries)
}

func TestRegistry_ResolveAlias(t *testing.T) {
	reg := testutil.NewLedgerRegistry(t, 0)
	ctx := context.Background()

	origin, err := reg.ResolveAlias(ctx, "CA")
	require.NoError(t, err)
	assert.Equal(t, testutil.AccountOrigin, origin)

	// Unknown aliases resolve to themselves.
	origin, err = reg.ResolveAlias(ctx, "ICAS")
	require.NoError(t, err)
	assert.Equal(t, "ICAS", origin)
}

func TestRegistry_ResolveAliasWithoutDocument(t *testing.T) {
	reg, err := schema.NewRegistry(schema.NewMemorySupplier(), schema.Options{})
	require.NoError(t, err)

	origin, err := reg.ResolveAlias(context.Background(), "LA")
	require.NoError(t, err)
	assert.Equal(t, "LA", origin)
}

func TestRegistry_ResolveJoin(t *testing.T) {
	reg := testutil.NewLedgerRegistry(t, 0)
	ctx := context.Background()

	on, err := reg.ResolveJoin(ctx, testutil.LedgerDB, `LA\CA`)
	require.NoError(t, err)
	assert.Equal(t, "[CA].[ACNT_CODE] = [LA].[ACCNT_CODE]", on)

	on, err = reg.ResolveJoin(ctx, testutil.LedgerDB, `LA\T02`)
	require.NoError(t, err)
	assert.Equal(t, `LA\T02`, on)

	_, err = reg.ResolveJoin(ctx, "NODB", `LA\CA`)
	require.Error(t, err)
	assert.True(t, schema.IsMissing(err))
}

func TestRegistry_Connection(t *testing.T) {
	reg := testutil.NewLedgerRegistry(t, 0)

	conn, err := reg.Connection(context.Background(), testutil.LedgerDB, "LA")
	require.NoError(t, err)
	assert.Equal(t, "sunsystems", conn)
}

func TestRegistry_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing field document", func(t *testing.T) {
		reg := testutil.NewLedgerRegistry(t, 0)
		_, err := reg.Fields(ctx, "NODB", "LA")
		require.Error(t, err)
		assert.True(t, schema.IsMissing(err))
		assert.ErrorIs(t, err, schema.ErrDocumentNotFound)
	})

	t.Run("missing node target fails the whole table", func(t *testing.T) {
		supplier := testutil.NewLedgerSupplier()
		supplier.SetFieldDocument(testutil.LedgerDB, "GONE", []byte(`
fields:
  - code: A
  - code: G
    type: NODE
    ref: GONE2
`))
		reg, err := schema.NewRegistry(supplier, schema.Options{})
		require.NoError(t, err)

		fields, err := reg.Fields(ctx, testutil.LedgerDB, "GONE")
		require.Error(t, err)
		assert.Nil(t, fields)
		assert.True(t, schema.IsMissing(err))
	})

	t.Run("malformed document", func(t *testing.T) {
		supplier := schema.NewMemorySupplier()
		supplier.SetFieldDocument("DB", "T", []byte("fields:\n  - code: A\n    colour: red\n"))
		reg, err := schema.NewRegistry(supplier, schema.Options{})
		require.NoError(t, err)

		_, err = reg.Fields(ctx, "DB", "T")
		require.Error(t, err)
		assert.True(t, schema.IsMalformed(err))
	})

	t.Run("node cycle", func(t *testing.T) {
		supplier := schema.NewMemorySupplier()
		supplier.SetFieldDocument("DB", "A", []byte("fields:\n  - code: B\n    type: NODE\n    ref: B\n"))
		supplier.SetFieldDocument("DB", "B", []byte("fields:\n  - code: A\n    type: node\n    ref: A\n"))
		reg, err := schema.NewRegistry(supplier, schema.Options{})
		require.NoError(t, err)

		_, err = reg.Fields(ctx, "DB", "A")
		require.Error(t, err)
		var se *schema.SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, schema.KindCycle, se.Kind)
	})

	t.Run("supplier failure", func(t *testing.T) {
		reg, err := schema.NewRegistry(failingSupplier{}, schema.Options{})
		require.NoError(t, err)

		_, err = reg.Fields(ctx, "DB", "T")
		require.Error(t, err)
		assert.True(t, schema.IsSchemaError(err))
		assert.False(t, schema.IsMissing(err))
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		reg := testutil.NewLedgerRegistry(t, 0)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := reg.Fields(cctx, testutil.LedgerDB, "LA")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	reg := testutil.NewLedgerRegistry(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table := "LA"
			if i%2 == 0 {
				table = "CA"
			}
			_, err := reg.Fields(ctx, testutil.LedgerDB, table)
			assert.NoError(t, err)
			_, err = reg.ResolveJoin(ctx, testutil.LedgerDB, `LA\CA`)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats := reg.Stats()
	assert.Equal(t, int64(16), stats.Hits+stats.Misses)
}

func TestNewRegistry_RequiresSupplier(t *testing.T) {
	_, err := schema.NewRegistry(nil, schema.Options{})
	assert.Error(t, err)

	_, err = schema.NewRegistry(schema.NewMemorySupplier(), schema.Options{CacheSize: -1})
	assert.Error(t, err)
}

var errBoom = errors.New("boom")

type failingSupplier struct{}

func (failingSupplier) FieldDocument(context.Context, string, string) ([]byte, error) {
	return nil, errBoom
}
func (failingSupplier) JoinDocument(context.Context, string) ([]byte, error) { return nil, errBoom }

// AliasDocument reports no document so alias resolution falls back to identity
// and the field fetch is reached.
func (failingSupplier) AliasDocument(context.Context) ([]byte, error) {
	return nil, schema.ErrDocumentNotFound
}

func (failingSupplier) CategoryDocument(context.Context, string) ([]byte, error) {
	return nil, errBoom
}
