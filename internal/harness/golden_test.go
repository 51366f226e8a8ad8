package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_LedgerSummary(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "ledger_summary.yaml"))
	require.NoError(t, err)

	// To regenerate: go test ./internal/harness -run TestRunWithGolden -update
	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestTranscript(t *testing.T) {
	result := &Result{Steps: []StepResult{
		{Formula: "PK1,LA", SQL: "SELECT *\nFROM PK1_A_SALFLDG [LA]"},
		{Formula: "PK1,LA,F=1", Error: "formula: position 7: unclosed filter", ErrorKind: KindFormula},
	}}

	want := "-- scenario: demo\n" +
		"\n-- steps[0]: PK1,LA\nSELECT *\nFROM PK1_A_SALFLDG [LA]\n" +
		"\n-- steps[1]: PK1,LA,F=1\n-- error: formula\n"
	assert.Equal(t, want, string(Transcript("demo", result)))
}
