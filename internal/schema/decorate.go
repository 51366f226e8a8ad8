package schema

import (
	"context"
	"strings"

	"github.com/grafana/regexp"

	"github.com/roach88/ledgerql/internal/fieldpath"
)

// analysisCode matches the three-character analysis category codes (A01..Z99)
// used as field codes and node segments.
var analysisCode = regexp.MustCompile(`^[A-Z][0-9]{2}$`)

// DecorateFields returns the fields of table with analysis descriptions
// applied:
//
//   - a field whose leaf is an analysis code takes the category description,
//     and is dropped when the category is unknown;
//   - a field nested under an analysis code segment keeps its description the
//     first time its category is seen and is prefixed with the category code
//     afterwards, so repeated names stay distinguishable.
//
// Codes are never changed.
func (r *Registry) DecorateFields(ctx context.Context, table, db string) ([]fieldpath.FieldPath, error) {
	fields, err := r.Fields(ctx, db, table)
	if err != nil {
		return nil, err
	}
	cats, err := r.Categories(ctx, db)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := make([]fieldpath.FieldPath, 0, len(fields))
	for _, f := range fields {
		if leaf := f.Leaf(); analysisCode.MatchString(leaf) {
			desc, ok := cats[leaf]
			if !ok {
				r.logger.Debug("dropping field with unknown analysis category",
					"field", f.Code,
					"category", leaf,
				)
				continue
			}
			out = append(out, f.WithDescription(desc))
			continue
		}

		if cat := categorySegment(f.Code); cat != "" {
			if seen[cat] {
				f = f.WithDescription(cat + " " + f.Description)
			}
			seen[cat] = true
		}
		out = append(out, f)
	}
	return out, nil
}

// categorySegment returns the first non-leaf segment of code that is an
// analysis code, or "".
func categorySegment(code string) string {
	segments := strings.Split(fieldpath.Family(code), fieldpath.Delimiter)
	for _, s := range segments {
		if analysisCode.MatchString(s) {
			return s
		}
	}
	return ""
}
