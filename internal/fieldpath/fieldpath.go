package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates the segments of a path code.
const Delimiter = `\`

// Type tags recognised by the literal formatter. Any other non-empty tag is
// treated as a raw numeric passthrough.
const (
	TypeText             = ""
	TypeDate             = "D"
	TypeSortableDate     = "SDN"
	TypePeriod           = "SP"
	TypePeriodNumeric    = "SPN"
	TypeNode             = "NODE" // schema documents only; expanded by the registry
	substringSpecDigits  = 4
	substringFieldDigits = 2
)

// Aggregate functions produced by the formula parser.
const (
	AggSum           = "SUM"
	AggCount         = "COUNT"
	AggAvg           = "AVG"
	AggMin           = "MIN"
	AggMax           = "MAX"
	AggDistinctSum   = "DISTINCT SUM"
	AggDistinctCount = "DISTINCT COUNT"
	AggDistinctAvg   = "DISTINCT AVG"
)

// FieldPath is one addressable column. See the package documentation for the
// path algebra.
type FieldPath struct {
	Code        string
	Description string
	Aggregate   string
	Type        string

	// Substring spec, active when SubLength > 0.
	SubOffset int
	SubLength int
}

// Empty is the canonical "no field" sentinel.
var Empty = FieldPath{}

// New builds a FieldPath from a code, a description and a raw type tag. A tag
// ending in four digits carries a substring spec (two digits offset, two
// digits length); the digits are split off and the remainder becomes Type.
func New(code, description, typeTag string) FieldPath {
	f := FieldPath{
		Code:        strings.TrimSpace(code),
		Description: description,
	}
	f.Type, f.SubOffset, f.SubLength = parseTypeTag(strings.TrimSpace(typeTag))
	return f
}

// parseTypeTag splits a raw type tag into its type and substring spec.
func parseTypeTag(tag string) (string, int, int) {
	if len(tag) < substringSpecDigits {
		return strings.ToUpper(tag), 0, 0
	}
	spec := tag[len(tag)-substringSpecDigits:]
	for _, r := range spec {
		if r < '0' || r > '9' {
			return strings.ToUpper(tag), 0, 0
		}
	}
	offset, _ := strconv.Atoi(spec[:substringFieldDigits])
	length, _ := strconv.Atoi(spec[substringFieldDigits:])
	if length == 0 {
		return strings.ToUpper(tag[:len(tag)-substringSpecDigits]), 0, 0
	}
	return strings.ToUpper(tag[:len(tag)-substringSpecDigits]), offset, length
}

// IsEmpty reports whether f is the Empty sentinel.
func (f FieldPath) IsEmpty() bool {
	return f.Code == ""
}

// IsText reports whether f carries no type tag.
func (f FieldPath) IsText() bool {
	return f.Type == TypeText
}

// HasSubstring reports whether f renders through SUBSTRING.
func (f FieldPath) HasSubstring() bool {
	return f.SubLength > 0
}

// WithAggregate returns a copy of f with the given aggregate function.
func (f FieldPath) WithAggregate(agg string) FieldPath {
	f.Aggregate = agg
	return f
}

// WithDescription returns a copy of f with a new description.
func (f FieldPath) WithDescription(desc string) FieldPath {
	f.Description = desc
	return f
}

// AddMeToParent re-roots f under parentPath: the root segment of f is
// replaced by parentPath. A table field CA\DESCR added to LA\A1 becomes
// LA\A1\DESCR.
func (f FieldPath) AddMeToParent(parentPath string) FieldPath {
	if f.IsEmpty() || parentPath == "" {
		return f
	}
	child := Child(f.Code)
	if child == "" {
		child = f.Code
	}
	f.Code = parentPath + Delimiter + child
	return f
}

func (f FieldPath) Root() string   { return Root(f.Code) }
func (f FieldPath) Parent() string { return Parent(f.Code) }
func (f FieldPath) Leaf() string   { return Leaf(f.Code) }
func (f FieldPath) Family() string { return Family(f.Code) }
func (f FieldPath) Child() string  { return Child(f.Code) }

// String returns the path code.
func (f FieldPath) String() string {
	return f.Code
}

// Root returns the segment before the first delimiter, or p itself when p has
// no delimiter.
func Root(p string) string {
	if i := strings.Index(p, Delimiter); i >= 0 {
		return p[:i]
	}
	return p
}

// Child returns everything after the first delimiter, or "" when p has no
// delimiter. Root(p) + Delimiter + Child(p) == p whenever p has a delimiter.
func Child(p string) string {
	if i := strings.Index(p, Delimiter); i >= 0 {
		return p[i+len(Delimiter):]
	}
	return ""
}

// Leaf returns the segment after the last delimiter, or p itself.
func Leaf(p string) string {
	if i := strings.LastIndex(p, Delimiter); i >= 0 {
		return p[i+len(Delimiter):]
	}
	return p
}

// Family returns p minus its leaf segment, or "" when p has no delimiter.
func Family(p string) string {
	if i := strings.LastIndex(p, Delimiter); i >= 0 {
		return p[:i]
	}
	return ""
}

// Parent returns the SQL alias of p's family: the family without its root,
// delimiters collapsed. A field hanging directly off the root has the root as
// its parent.
func Parent(p string) string {
	return Alias(Family(p))
}

// Alias returns the SQL alias used for a family path.
func Alias(family string) string {
	if family == "" {
		return ""
	}
	rest := Child(family)
	if rest == "" {
		return family
	}
	return strings.ReplaceAll(rest, Delimiter, "")
}

// RenderColumn returns the bracketed column reference for f.
func (f FieldPath) RenderColumn() string {
	if f.IsEmpty() {
		return ""
	}
	col := renderReference(f.Parent(), f.Leaf())
	if f.HasSubstring() {
		return fmt.Sprintf("SUBSTRING(%s, %d, %d)", col, f.SubOffset, f.SubLength)
	}
	return col
}

// renderReference renders [parent].[leaf], splicing the parent inside a
// function-call leaf such as NAME(inner).
func renderReference(parent, leaf string) string {
	open := strings.Index(leaf, "(")
	if open > 0 && strings.HasSuffix(leaf, ")") {
		name := leaf[:open]
		inner := strings.TrimSpace(leaf[open+1 : len(leaf)-1])
		return fmt.Sprintf("%s(%s)", name, qualify(parent, inner))
	}
	return qualify(parent, leaf)
}

func qualify(parent, column string) string {
	if parent == "" {
		return bracket(column)
	}
	return bracket(parent) + "." + bracket(column)
}

// bracket quotes an identifier. Expressions that are not plain identifiers
// are left as written.
func bracket(ident string) string {
	if strings.HasPrefix(ident, "[") && strings.HasSuffix(ident, "]") {
		return ident
	}
	for _, r := range ident {
		if !(r == '_' || r == '#' || r == '$' || r == ' ' ||
			(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return ident
		}
	}
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// RenderAggregate wraps RenderColumn in the aggregate function, if any.
// DISTINCT aggregates render as FUNC(DISTINCT col).
func (f FieldPath) RenderAggregate() string {
	col := f.RenderColumn()
	if col == "" || f.Aggregate == "" {
		return col
	}
	agg := strings.ToUpper(strings.TrimSpace(f.Aggregate))
	if fn, ok := strings.CutPrefix(agg, "DISTINCT "); ok {
		return fmt.Sprintf("%s(DISTINCT %s)", strings.TrimSpace(fn), col)
	}
	return fmt.Sprintf("%s(%s)", agg, col)
}
