package predicate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/roach88/ledgerql/internal/fieldpath"
)

// Compiler turns Filters into SQL fragments.
type Compiler struct {
	lit *fieldpath.Literals
}

// NewCompiler creates a Compiler that formats values with lit.
func NewCompiler(lit *fieldpath.Literals) *Compiler {
	if lit == nil {
		lit = fieldpath.NewLiterals(nil, nil)
	}
	return &Compiler{lit: lit}
}

// Compile returns the WHERE fragment for f, or "" when f contributes nothing.
func (c *Compiler) Compile(f *Filter) string {
	if f == nil || f.Field.IsEmpty() {
		return ""
	}
	op := f.Op
	if op == "" {
		op = OpLegacy
	}

	if f.Negate || op != OpLegacy {
		if op == OpLegacy {
			return not(c.CompileLegacy(f))
		}
		return c.CompileExplicit(f)
	}
	return c.CompileLegacy(f)
}

// CompileExplicit compiles f through its operator code. The result is
// wrapped in NOT when f is negated.
func (c *Compiler) CompileExplicit(f *Filter) string {
	if f == nil || f.Field.IsEmpty() {
		return ""
	}
	frag := c.explicit(f.Field, f.Op, f.from, f.to)
	if f.Negate {
		return not(frag)
	}
	return frag
}

func (c *Compiler) explicit(field fieldpath.FieldPath, op Operator, from, to string) string {
	col := field.RenderColumn()
	text := field.IsText()

	switch op {
	case OpEqual:
		return c.equal(field, from)

	case OpBegin, OpEnd:
		// Anchored matching is only defined for text fields.
		if !text {
			return ""
		}
		pattern := upper(from) + "%"
		if op == OpEnd {
			pattern = "%" + upper(from)
		}
		return fmt.Sprintf("(UPPER(%s) LIKE %s)", col, fieldpath.Text(pattern))

	case OpContain:
		words := strings.Fields(from)
		if len(words) == 0 {
			return c.equal(field, from)
		}
		terms := make([]string, len(words))
		for i, w := range words {
			if text {
				terms[i] = fmt.Sprintf("UPPER(%s) LIKE %s", col, fieldpath.Text("%"+upper(w)+"%"))
			} else {
				terms[i] = fmt.Sprintf("%s LIKE %s", col, fieldpath.Text("%"+w+"%"))
			}
		}
		return "(" + strings.Join(terms, " AND ") + ")"

	case OpBetween:
		if to == "" {
			return c.equal(field, from)
		}
		if text {
			return fmt.Sprintf("(UPPER(%s) BETWEEN %s AND %s)", col, fieldpath.Text(upper(from)), fieldpath.Text(upper(to)))
		}
		return fmt.Sprintf("(%s BETWEEN %s AND %s)", col, c.lit.Format(field, from), c.lit.Format(field, to))

	case OpLess, OpGreater, OpLessEqual, OpGreaterEqual, OpNotEqual:
		if text {
			return fmt.Sprintf("(UPPER(%s) %s %s)", col, op, fieldpath.Text(upper(from)))
		}
		return fmt.Sprintf("(%s %s %s)", col, op, c.lit.Format(field, from))

	case OpIn:
		if strings.TrimSpace(from) == "" {
			return c.equal(field, from)
		}
		return fmt.Sprintf("(%s IN %s)", col, c.lit.FormatArray(field, from))

	case OpSpace:
		return blank(field)

	case OpExists:
		return present(field)

	default:
		return c.equal(field, from)
	}
}

// equal is the conservative fallback of every branch.
func (c *Compiler) equal(field fieldpath.FieldPath, value string) string {
	return fmt.Sprintf("(%s = %s)", field.RenderColumn(), c.lit.Format(field, value))
}

// blank matches empty or NULL values; typed fields can only be NULL.
func blank(field fieldpath.FieldPath) string {
	col := field.RenderColumn()
	if field.IsText() {
		return fmt.Sprintf("(%s = '' OR %s IS NULL)", col, col)
	}
	return fmt.Sprintf("(%s IS NULL)", col)
}

// present is the negation of blank.
func present(field fieldpath.FieldPath) string {
	col := field.RenderColumn()
	if field.IsText() {
		return fmt.Sprintf("(%s <> '' AND %s IS NOT NULL)", col, col)
	}
	return fmt.Sprintf("(%s IS NOT NULL)", col)
}

func not(frag string) string {
	if frag == "" {
		return ""
	}
	return "(NOT " + frag + ")"
}

// upper maps each rune to its simple upper case, as SQL UPPER does. Full
// case mapping would expand ß to SS and never match the column.
func upper(v string) string {
	return strings.Map(unicode.ToUpper, v)
}
