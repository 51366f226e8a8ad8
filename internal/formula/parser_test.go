package formula

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerql/internal/fieldpath"
	"github.com/roach88/ledgerql/internal/predicate"
	"github.com/roach88/ledgerql/internal/query"
	"github.com/roach88/ledgerql/internal/schema"
	"github.com/roach88/ledgerql/internal/testutil"
)

func newTestParser(t *testing.T) (*Parser, *schema.Registry) {
	t.Helper()
	reg := testutil.NewLedgerRegistry(t, 0)
	return NewParser(reg, nil), reg
}

func newRequest(mode query.Mode) *query.Request {
	return query.NewRequest(mode, testutil.NewFixedIDGenerator("req-1"))
}

func TestParseLight_DefaultsToCount(t *testing.T) {
	p, _ := newTestParser(t)

	req := newRequest(query.ModeSummary)
	require.NoError(t, p.ParseLight(context.Background(), `PK1,LA,O=/AMOUNT`, req))
	require.Len(t, req.Outputs(), 1)
	assert.Equal(t, fieldpath.AggCount, req.Outputs()[0].Aggregate)

	req = newRequest(query.ModeDetails)
	require.NoError(t, p.ParseLight(context.Background(), `PK1,LA,O=/AMOUNT`, req))
	assert.Equal(t, "", req.Outputs()[0].Aggregate)

	// Explicit digits win, even unknown ones.
	req = newRequest(query.ModeSummary)
	require.NoError(t, p.ParseLight(context.Background(), `PK1,LA,E=4,O=/AMOUNT,E=9,O=/D_C`, req))
	assert.Equal(t, fieldpath.AggMin, req.Outputs()[0].Aggregate)
	assert.Equal(t, "", req.Outputs()[1].Aggregate)
}

func TestParseWithParameters_NoDefaultAggregate(t *testing.T) {
	p, _ := newTestParser(t)

	req := newRequest(query.ModeSummary)
	require.NoError(t, p.ParseWithParameters(context.Background(), `PK1,LA,O=/AMOUNT`, nil, req))
	assert.Equal(t, "", req.Outputs()[0].Aggregate)
}

func TestParseWithParameters(t *testing.T) {
	p, _ := newTestParser(t)
	req := newRequest(query.ModeSummary)

	err := p.ParseWithParameters(context.Background(),
		`{P}0,LA,R=Sheet1!B2,R=Sheet1!B3,F={P}1,K=D_C,F=<<1000,2000,K=CA\ACNT_CODE,E=1,O=/AMOUNT,O=/CA\DESCR`,
		[]string{"PK1", "D"}, req)
	require.NoError(t, err)

	assert.Equal(t, "LA", req.Table())
	assert.Equal(t, query.Slot{Raw: "{P}0", Param: 0, Reference: "Sheet1!B2", Value: "PK1"}, req.Database())
	assert.Equal(t, "sunsystems", req.Connection())

	filters := req.Filters()
	require.Len(t, filters, 2)
	assert.Equal(t, `LA\D_C`, filters[0].Field.Code)
	assert.Equal(t, "D", filters[0].From())
	assert.Equal(t, predicate.OpLegacy, filters[0].Op)
	assert.Equal(t, `LA\CA\ACNT_CODE`, filters[1].Field.Code)
	assert.Equal(t, "<<1000,2000", filters[1].From())

	outputs := req.Outputs()
	require.Len(t, outputs, 2)
	assert.Equal(t, fieldpath.AggSum, outputs[0].Aggregate)
	assert.Equal(t, "", outputs[1].Aggregate)
	assert.Equal(t, "Account Name", outputs[1].Description)
}

func TestParse_RendersEndToEnd(t *testing.T) {
	p, reg := newTestParser(t)
	req := newRequest(query.ModeSummary)

	require.NoError(t, p.ParseWithParameters(context.Background(),
		`PK1,LA,F={P}0,T={P}1,K=TRANS_DATETIME,F=B,K=LA/Ledger,E=1,O=/AMOUNT,O=/CA\DESCR`,
		[]string{"20240101", "C"}, req))

	lit := fieldpath.NewLiterals(testutil.NewFixedClock(2024, time.March, 5), nil)
	r := query.NewRenderer(reg, predicate.NewCompiler(lit), query.RendererOptions{})
	sql, err := req.RenderSQL(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, "SELECT SUM([LA].[AMOUNT]) AS [Base Amount], [CA].[DESCR] AS [Account Name]\n"+
		"FROM PK1_B_SALFLDG [LA]\n"+
		"LEFT OUTER JOIN PK1_ACNT [CA] ON [CA].[ACNT_CODE] = [LA].[ACCNT_CODE]\n"+
		"WHERE ([LA].[TRANS_DATETIME] BETWEEN 20240101 AND 20240305)\n"+
		"GROUP BY [CA].[DESCR]", sql)
}

func TestParse_LedgerKey(t *testing.T) {
	p, _ := newTestParser(t)
	req := newRequest(query.ModeSummary)

	require.NoError(t, p.ParseWithParameters(context.Background(), `PK1,LA,F={P}0,K=la/LEDGER`, []string{"C"}, req))
	assert.Empty(t, req.Filters())
	assert.Equal(t, "C", req.Ledger().Value)
	assert.Equal(t, 0, req.Ledger().Param)
}

func TestParse_OperatorAndNegation(t *testing.T) {
	p, _ := newTestParser(t)
	req := newRequest(query.ModeDetails)

	require.NoError(t, p.ParseLight(context.Background(),
		`PK1,LA,P=contain,N=1,F=cash bank,K=CA\DESCR,F=x,K=D_C`, req))

	filters := req.Filters()
	require.Len(t, filters, 2)
	assert.Equal(t, predicate.OpContain, filters[0].Op)
	assert.True(t, filters[0].Negate)
	// State resets after K=.
	assert.Equal(t, predicate.OpLegacy, filters[1].Op)
	assert.False(t, filters[1].Negate)
}

func TestParse_ValuesAreSanitized(t *testing.T) {
	p, _ := newTestParser(t)
	req := newRequest(query.ModeDetails)

	require.NoError(t, p.ParseLight(context.Background(), `PK1,LA,F=x;DELETE,K=D_C`, req))
	assert.Equal(t, "x;", req.Filters()[0].From())
}

func TestParse_NormalizesToNFC(t *testing.T) {
	p, _ := newTestParser(t)
	req := newRequest(query.ModeDetails)

	require.NoError(t, p.ParseLight(context.Background(), "PK1,LA,F=Cafe\u0301,K=CA\\DESCR", req))
	assert.Equal(t, "Caf\u00e9", req.Filters()[0].From())
}

func TestParse_EmptyIsNoOp(t *testing.T) {
	p, _ := newTestParser(t)

	for _, text := range []string{"", "   "} {
		req := newRequest(query.ModeSummary)
		require.NoError(t, p.ParseLight(context.Background(), text, req))
		require.NoError(t, p.ParseWithParameters(context.Background(), text, nil, req))
		assert.True(t, req.IsEmpty())
	}
}

func TestParseWithParameters_TableParameter(t *testing.T) {
	p, _ := newTestParser(t)
	req := newRequest(query.ModeSummary)

	err := p.ParseWithParameters(context.Background(), `PK1,{P}0,R=Sheet1!A1,O=/AMOUNT`, []string{"LA"}, req)
	require.NoError(t, err)
	assert.Equal(t, "LA", req.Table())
	require.Len(t, req.Outputs(), 1)
	assert.Equal(t, `LA\AMOUNT`, req.Outputs()[0].Code)
}

func TestParseLight_TableParameterIsRejected(t *testing.T) {
	p, _ := newTestParser(t)
	req := newRequest(query.ModeSummary)

	err := p.ParseLight(context.Background(), `PK1,{P}0,O=/AMOUNT`, req)
	require.Error(t, err)
	assert.True(t, IsFormulaError(err))
	assert.True(t, req.IsEmpty())
}

func TestParse_ErrorsLeaveRequestUntouched(t *testing.T) {
	p, _ := newTestParser(t)

	testCases := []struct {
		name    string
		text    string
		values  []string
		formula bool
		schema  bool
	}{
		{name: "no table", text: "PK1", formula: true},
		{name: "unterminated filter", text: "PK1,LA,F=1", formula: true},
		{name: "dangling aggregate", text: "PK1,LA,E=1", formula: true},
		{name: "output without slash", text: "PK1,LA,O=AMOUNT", formula: true},
		{name: "empty field code", text: "PK1,LA,F=1,K=", formula: true},
		{name: "missing parameter value", text: "{P}0,LA", formula: true},
		{name: "missing table parameter value", text: "PK1,{P}0", formula: true},
		{name: "unknown filter field", text: "PK1,LA,O=/AMOUNT,F=1,K=NOPE", schema: true},
		{name: "unknown output field", text: "PK1,LA,O=/NOPE", schema: true},
		{name: "unknown database", text: "XX,LA,O=/AMOUNT", schema: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := newRequest(query.ModeSummary)
			err := p.ParseWithParameters(context.Background(), tc.text, tc.values, req)
			require.Error(t, err)
			assert.Equal(t, tc.formula, IsFormulaError(err))
			assert.Equal(t, tc.schema, schema.IsSchemaError(err))
			assert.True(t, req.IsEmpty())
		})
	}
}

func TestParse_RenderedRequest(t *testing.T) {
	p, reg := newTestParser(t)
	req := newRequest(query.ModeSummary)
	require.NoError(t, p.ParseLight(context.Background(), `PK1,LA`, req))

	_, err := query.NewRenderer(reg, nil, query.RendererOptions{}).Render(context.Background(), req)
	require.NoError(t, err)

	err = p.ParseLight(context.Background(), `PK1,LA,O=/AMOUNT`, req)
	assert.ErrorIs(t, err, query.ErrRendered)
}

func TestAggregate(t *testing.T) {
	expected := []string{"", "SUM", "COUNT", "AVG", "MIN", "MAX", "DISTINCT SUM", "DISTINCT COUNT", "DISTINCT AVG", ""}
	for digit, agg := range expected {
		assert.Equal(t, agg, Aggregate(string(rune('0'+digit))))
	}
	assert.Equal(t, "", Aggregate("12"))
}
