package catalog

import (
	"fmt"
	"strings"
)

// Validation error codes (E200-E299)
const (
	ErrAliasOriginEmpty  = "E201" // alias maps to an empty origin
	ErrUnknownNodeRef    = "E202" // NODE ref is neither an alias nor a table
	ErrDuplicateField    = "E203" // field code repeated within a table
	ErrNodeCycle         = "E204" // NODE refs expand into themselves
	ErrJoinUnknownFamily = "E205" // join code names an unknown table
)

// ValidationError represents a catalog validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the catalog for references the registry could not
// resolve. Returns all errors found (does not fail-fast), in a stable order.
func Validate(c *Catalog) []ValidationError {
	var errs []ValidationError

	for _, alias := range sortedKeys(c.Aliases) {
		if strings.TrimSpace(c.Aliases[alias]) == "" {
			errs = append(errs, ValidationError{
				Field:   "aliases." + alias,
				Message: "origin is empty",
				Code:    ErrAliasOriginEmpty,
			})
		}
	}

	for _, db := range c.Databases {
		origins := make(map[string]bool, len(db.Tables))
		for _, t := range db.Tables {
			origins[t.Origin] = true
		}
		known := func(name string) bool {
			if origin, ok := c.Aliases[name]; ok {
				return origins[origin]
			}
			return origins[name]
		}

		for _, t := range db.Tables {
			seen := make(map[string]bool, len(t.Doc.Fields))
			for i, f := range t.Doc.Fields {
				field := fmt.Sprintf("databases.%s.tables.%q.fields[%d]", db.Name, t.Origin, i)
				key := strings.ToUpper(f.Code)
				if seen[key] {
					errs = append(errs, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("duplicate field code %s", f.Code),
						Code:    ErrDuplicateField,
					})
				}
				seen[key] = true

				if f.IsNode() && !known(f.Ref) {
					errs = append(errs, ValidationError{
						Field:   field,
						Message: fmt.Sprintf("NODE %s refers to unknown table %s", f.Code, f.Ref),
						Code:    ErrUnknownNodeRef,
					})
				}
			}
		}

		for _, j := range db.Joins {
			segments := strings.Split(j.Code, `\`)
			if len(segments) < 2 || !known(segments[0]) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("databases.%s.joins.%q", db.Name, j.Code),
					Message: fmt.Sprintf("join %s does not start at a known table", j.Code),
					Code:    ErrJoinUnknownFamily,
				})
			}
		}
	}

	for _, w := range AnalyzeCycles(c) {
		errs = append(errs, ValidationError{
			Field:   "databases." + w.Database,
			Message: w.Message,
			Code:    ErrNodeCycle,
		})
	}

	return errs
}
