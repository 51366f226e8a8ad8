package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Transcript renders a result as plain text, one block per step:
//
//	-- steps[0]: <formula>
//	<SQL>
//
//	-- steps[1]: <formula>
//	-- error: <kind>
//
// Error messages are left out so wording changes do not churn golden files.
func Transcript(scenarioName string, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "-- scenario: %s\n", scenarioName)
	for i, step := range result.Steps {
		fmt.Fprintf(&buf, "\n-- steps[%d]: %s\n", i, step.Formula)
		if step.ErrorKind != "" {
			fmt.Fprintf(&buf, "-- error: %s\n", step.ErrorKind)
			continue
		}
		buf.WriteString(step.SQL)
		buf.WriteString("\n")
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its transcript against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the transcript doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, Options{})
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's transcript against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Transcript(scenarioName, result))
}
