package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_LedgerSummary(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "ledger_summary.yaml"))
	require.NoError(t, err)

	result, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Steps, 5)
	assert.Equal(t, "sunsystems", result.Steps[0].Connection)
	assert.Len(t, result.Steps[0].CompilationID, 64)
	assert.Equal(t, KindUnknownField, result.Steps[2].ErrorKind)
	assert.Empty(t, result.Steps[2].CompilationID)
	assert.Equal(t, 3, result.Compilations)
}

func TestRun_ReportsFailures(t *testing.T) {
	s := &Scenario{
		Name:        "failing",
		Description: "expectations that do not hold",
		Catalog:     catalogDir(t),
		Steps: []Step{
			{Formula: "PK1,LA", Expect: Expect{SQL: "SELECT 1"}},
			{Formula: "PK1,LA,O=/NOPE", Expect: Expect{Contains: []string{"NOPE"}}},
			{Formula: "PK1,LA", Expect: Expect{Error: KindFormula}},
		},
	}

	result, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "steps[0]: assertion failed: sql")
	assert.Contains(t, result.Errors[1], "steps[1]: assertion failed: compile")
	assert.Contains(t, result.Errors[2], "steps[2]: assertion failed: error")
	assert.Contains(t, result.Errors[2], "no error")
}

func TestRun_DefaultLedgerAndClock(t *testing.T) {
	s := &Scenario{
		Name:          "ledger_default",
		Description:   "default ledger and clock",
		Catalog:       catalogDir(t),
		DefaultLedger: "Q",
		Steps: []Step{
			{Formula: "PK1,LA,F=20231201,T=C,K=TRANS_DATETIME", Expect: Expect{Contains: []string{
				"FROM PK1_Q_SALFLDG [LA]",
				"([LA].[TRANS_DATETIME] BETWEEN 20231201 AND 20240101)",
			}}},
		},
	}

	result, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MissingCatalog(t *testing.T) {
	s := &Scenario{Name: "x", Catalog: filepath.Join(t.TempDir(), "none")}
	_, err := Run(context.Background(), s, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}
