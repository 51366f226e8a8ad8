// Package predicate compiles one field filter into a parenthesised SQL
// boolean expression.
//
// Two predicate syntaxes are supported. The explicit syntax carries an
// operator code next to the values (BEGIN, CONTAIN, BETWEEN, in, ...). The
// legacy syntax uses the operator code "-" and encodes the operator inside
// the value itself (">>abc", "<<1,2,3", "^foo", "AB%"), recognised by an
// ordered rule list.
//
// Compilation never fails: contradictory or missing input degrades to the
// most conservative result, which is equality or no predicate at all.
package predicate

import (
	"strings"

	"github.com/grafana/regexp"

	"github.com/roach88/ledgerql/internal/fieldpath"
)

// Operator is a filter operator code.
type Operator string

const (
	OpEqual        Operator = "="
	OpBegin        Operator = "BEGIN"
	OpEnd          Operator = "END"
	OpContain      Operator = "CONTAIN"
	OpBetween      Operator = "BETWEEN"
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpNotEqual     Operator = "<>"
	OpIn           Operator = "in"
	OpSpace        Operator = "SPACE"
	OpExists       Operator = "EXISTS"
	OpLegacy       Operator = "-" // operator encoded in the value
)

var knownOperators = []Operator{
	OpEqual, OpBegin, OpEnd, OpContain, OpBetween, OpLess, OpGreater,
	OpLessEqual, OpGreaterEqual, OpNotEqual, OpIn, OpSpace, OpExists, OpLegacy,
}

// ParseOperator maps an operator code to an Operator, ignoring case and
// surrounding space. An empty code is the legacy operator. Unknown codes are
// kept verbatim and compile as equality.
func ParseOperator(code string) Operator {
	code = strings.TrimSpace(code)
	if code == "" {
		return OpLegacy
	}
	for _, op := range knownOperators {
		if strings.EqualFold(code, string(op)) {
			return op
		}
	}
	return Operator(code)
}

// dmlKeywords are removed from filter values before storage.
var dmlKeywords = regexp.MustCompile(`(?i)INSERT|UPDATE|DELETE`)

// Sanitize strips INSERT, UPDATE and DELETE (any case) from v. Removal is
// repeated until none remain, so Sanitize(Sanitize(v)) == Sanitize(v). A
// single pass would not be idempotent: "INSINSERTERT" leaves "INSERT".
// This differs from a one-pass strip only on such nested inputs.
//
// This is a narrow keyword filter, not a general injection defence; literal
// quoting is what keeps values inside their string literals.
func Sanitize(v string) string {
	for dmlKeywords.MatchString(v) {
		v = dmlKeywords.ReplaceAllString(v, "")
	}
	return v
}

// Filter binds one field to an operator, a negation flag and a value range.
type Filter struct {
	Field  fieldpath.FieldPath
	Op     Operator
	Negate bool

	from string
	to   string
}

// NewFilter creates a filter. Values pass through the sanitizing setters.
func NewFilter(field fieldpath.FieldPath, op Operator, negate bool, from, to string) *Filter {
	f := &Filter{Field: field, Op: op, Negate: negate}
	f.SetFrom(from)
	f.SetTo(to)
	return f
}

// SetFrom stores the lower (or only) value.
func (f *Filter) SetFrom(v string) { f.from = Sanitize(v) }

// SetTo stores the upper value.
func (f *Filter) SetTo(v string) { f.to = Sanitize(v) }

// From returns the stored lower value.
func (f *Filter) From() string { return f.from }

// To returns the stored upper value.
func (f *Filter) To() string { return f.to }
