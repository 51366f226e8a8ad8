package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/ledgerql/internal/formula"
	"github.com/roach88/ledgerql/internal/query"
	"github.com/roach88/ledgerql/internal/schema"
)

// Error kinds reported in StepResult.ErrorKind and matched by expect.error.
const (
	KindFormula      = "formula"
	KindUnknownField = "unknown_field"
	KindMissing      = "missing_document"
	KindMalformed    = "malformed_document"
	KindCycle        = "node_cycle"
	KindSchema       = "schema"
	KindNoTarget     = "no_target"
	KindInternal     = "internal"
)

var knownErrorKinds = map[string]bool{
	KindFormula:      true,
	KindUnknownField: true,
	KindMissing:      true,
	KindMalformed:    true,
	KindCycle:        true,
	KindSchema:       true,
	KindNoTarget:     true,
}

// ErrorKind classifies a compilation error.
func ErrorKind(err error) string {
	var se *schema.SchemaError
	switch {
	case err == nil:
		return ""
	case formula.IsFormulaError(err):
		return KindFormula
	case errors.As(err, &se):
		switch se.Kind {
		case schema.KindUnknownField:
			return KindUnknownField
		case schema.KindMissing:
			return KindMissing
		case schema.KindMalformed:
			return KindMalformed
		case schema.KindCycle:
			return KindCycle
		default:
			return KindSchema
		}
	case errors.Is(err, query.ErrNoTarget):
		return KindNoTarget
	default:
		return KindInternal
	}
}

// AssertionError is returned when a step does not meet its expectation.
// It includes the generated SQL to help debug the failure.
type AssertionError struct {
	Step     int    // Zero-based step index
	Type     string // Expectation that failed
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Generated SQL, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "steps[%d]: assertion failed: %s\n", e.Step, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.SQL != "" {
		fmt.Fprintf(&buf, "\nGenerated SQL:\n")
		for _, line := range strings.Split(e.SQL, "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// EvaluateExpect checks one step result against its expectation and returns
// every failure (does not fail-fast).
func EvaluateExpect(index int, got StepResult, expect Expect) []error {
	if expect.Error != "" {
		if got.ErrorKind != expect.Error {
			actual := "no error"
			if got.Error != "" {
				actual = fmt.Sprintf("%s error: %s", got.ErrorKind, got.Error)
			}
			return []error{&AssertionError{
				Step:     index,
				Type:     "error",
				Expected: expect.Error + " error",
				Actual:   actual,
				SQL:      got.SQL,
			}}
		}
		return nil
	}

	if got.Error != "" {
		return []error{&AssertionError{
			Step:     index,
			Type:     "compile",
			Expected: "successful compilation",
			Actual:   fmt.Sprintf("%s error: %s", got.ErrorKind, got.Error),
		}}
	}

	var errs []error

	if expect.SQL != "" {
		want := strings.TrimRight(expect.SQL, "\n")
		if got.SQL != want {
			errs = append(errs, &AssertionError{
				Step:     index,
				Type:     "sql",
				Expected: fmt.Sprintf("%q", want),
				Actual:   fmt.Sprintf("%q", got.SQL),
				SQL:      got.SQL,
			})
		}
	}

	for _, sub := range expect.Contains {
		if !strings.Contains(got.SQL, sub) {
			errs = append(errs, &AssertionError{
				Step:     index,
				Type:     "contains",
				Expected: fmt.Sprintf("SQL containing %q", sub),
				Actual:   "not found",
				SQL:      got.SQL,
			})
		}
	}

	for _, sub := range expect.Excludes {
		if strings.Contains(got.SQL, sub) {
			errs = append(errs, &AssertionError{
				Step:     index,
				Type:     "excludes",
				Expected: fmt.Sprintf("SQL without %q", sub),
				Actual:   "found",
				SQL:      got.SQL,
			})
		}
	}

	if expect.Connection != "" && got.Connection != expect.Connection {
		errs = append(errs, &AssertionError{
			Step:     index,
			Type:     "connection",
			Expected: expect.Connection,
			Actual:   got.Connection,
		})
	}

	return errs
}
