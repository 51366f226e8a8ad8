package predicate

import (
	"fmt"

	"github.com/grafana/regexp"

	"github.com/roach88/ledgerql/internal/fieldpath"
)

// legacyRule recognises one operator embedded in a legacy value. Rules are
// tried in order; the first whose pattern matches wins. The first capture
// group, when present, is the value with the operator removed.
type legacyRule struct {
	name    string
	pattern *regexp.Regexp
	// onlyWithoutTo restricts the rule to filters with an empty upper value.
	onlyWithoutTo bool
	build         func(c *Compiler, field fieldpath.FieldPath, rest, to string) string
}

// wildcards are the characters that rule out plain equality or BETWEEN.
var wildcards = regexp.MustCompile(`>|<|\[|%|_|\]|\*>|!`)

// legacyRules is populated in init: the "not" rule recurses into the rule
// table, which a package-level initializer cannot do.
var legacyRules []legacyRule

func init() {
	legacyRules = []legacyRule{
		{
			name:          "exact",
			pattern:       regexp.MustCompile(`^\*>(.*)$`),
			onlyWithoutTo: true,
			build: func(c *Compiler, field fieldpath.FieldPath, rest, _ string) string {
				return c.equal(field, rest)
			},
		},
		{
			name:    "not",
			pattern: regexp.MustCompile(`^\^(.*)$`),
			build: func(c *Compiler, field fieldpath.FieldPath, rest, to string) string {
				return not(c.legacy(field, rest, to))
			},
		},
		{
			name:    "blank",
			pattern: regexp.MustCompile(`^!$`),
			build: func(_ *Compiler, field fieldpath.FieldPath, _, _ string) string {
				return blank(field)
			},
		},
		{
			name:    "like-literal",
			pattern: regexp.MustCompile(`^!(.+)$`),
			build: func(_ *Compiler, field fieldpath.FieldPath, rest, _ string) string {
				return fmt.Sprintf("(%s LIKE %s)", field.RenderColumn(), fieldpath.Text(rest))
			},
		},
		{
			name:    "like-ignore-case",
			pattern: regexp.MustCompile(`^>>(.*)$`),
			build: func(_ *Compiler, field fieldpath.FieldPath, rest, _ string) string {
				return fmt.Sprintf("(UPPER(%s) LIKE %s)", field.RenderColumn(), fieldpath.Text(upper(rest)))
			},
		},
		{
			name:    "in",
			pattern: regexp.MustCompile(`^<<(.*)$`),
			build: func(c *Compiler, field fieldpath.FieldPath, rest, _ string) string {
				return fmt.Sprintf("(%s IN %s)", field.RenderColumn(), c.lit.FormatArray(field, rest))
			},
		},
		comparisonRule("not-equal", `^<>(.*)$`, "<>"),
		comparisonRule("greater-equal", `^>=(.*)$`, ">="),
		comparisonRule("less-equal", `^<=(.*)$`, "<="),
		comparisonRule("greater", `^>(.*)$`, ">"),
		comparisonRule("less", `^<(.*)$`, "<"),
		{
			name:    "like-signature",
			pattern: regexp.MustCompile(`^\*=(.*)$`),
			build: func(_ *Compiler, field fieldpath.FieldPath, rest, _ string) string {
				return fmt.Sprintf("(%s LIKE %s)", field.RenderColumn(), fieldpath.Text(rest))
			},
		},
		{
			name:    "like-wildcard",
			pattern: regexp.MustCompile(`^(.*[%_\[\]].*)$`),
			build: func(_ *Compiler, field fieldpath.FieldPath, rest, _ string) string {
				return fmt.Sprintf("(%s LIKE %s)", field.RenderColumn(), fieldpath.Text(rest))
			},
		},
	}
}

func comparisonRule(name, pattern, op string) legacyRule {
	return legacyRule{
		name:    name,
		pattern: regexp.MustCompile(pattern),
		build: func(c *Compiler, field fieldpath.FieldPath, rest, _ string) string {
			return fmt.Sprintf("(%s %s %s)", field.RenderColumn(), op, c.lit.Format(field, rest))
		},
	}
}

// CompileLegacy compiles f by reading the operator out of its lower value.
// Negation is not applied here; Compile wraps the result when needed.
func (c *Compiler) CompileLegacy(f *Filter) string {
	if f == nil || f.Field.IsEmpty() {
		return ""
	}
	return c.legacy(f.Field, f.from, f.to)
}

func (c *Compiler) legacy(field fieldpath.FieldPath, from, to string) string {
	if from == "" && to == "" {
		return ""
	}

	if rule, rest, ok := matchLegacy(from, to); ok {
		return rule.build(c, field, rest, to)
	}

	if !wildcards.MatchString(from) {
		if to == "" {
			return c.equal(field, from)
		}
		return fmt.Sprintf("(%s BETWEEN %s AND %s)", field.RenderColumn(), c.lit.Format(field, from), c.lit.Format(field, to))
	}

	// Wildcard characters in positions no rule claims.
	return c.equal(field, from)
}

// matchLegacy returns the first rule matching value.
func matchLegacy(value, to string) (legacyRule, string, bool) {
	for _, rule := range legacyRules {
		if rule.onlyWithoutTo && to != "" {
			continue
		}
		m := rule.pattern.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		rest := ""
		if len(m) > 1 {
			rest = m[1]
		}
		return rule, rest, true
	}
	return legacyRule{}, "", false
}
