package formula

import (
	"errors"
	"fmt"
)

// FormulaError reports malformed formula text.
type FormulaError struct {
	Pos     int
	Message string
}

// Error implements the error interface.
func (e *FormulaError) Error() string {
	return fmt.Sprintf("formula: position %d: %s", e.Pos, e.Message)
}

// IsFormulaError returns true if err is a FormulaError.
// Uses errors.As to handle wrapped errors.
func IsFormulaError(err error) bool {
	var fe *FormulaError
	return errors.As(err, &fe)
}

func errorf(pos int, format string, args ...any) *FormulaError {
	return &FormulaError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}
