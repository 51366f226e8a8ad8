package fieldpath

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DatabaseToken is replaced by the database name inside resolved table
// origins, so one alias document can serve every database.
const DatabaseToken = "{DB}"

// Resolver looks up table origins and join conditions. Both lookups fall back
// to returning their input unchanged when the key is unknown; the error is
// reserved for failures to load the underlying documents.
type Resolver interface {
	ResolveAlias(ctx context.Context, alias string) (string, error)
	ResolveJoin(ctx context.Context, db, code string) (string, error)
}

// AliasSet records the aliases already joined into one FROM clause.
type AliasSet map[string]struct{}

// Has reports whether alias is registered.
func (s AliasSet) Has(alias string) bool {
	_, ok := s[alias]
	return ok
}

// Add registers alias.
func (s AliasSet) Add(alias string) {
	s[alias] = struct{}{}
}

// JoinClause returns the LEFT OUTER JOIN lines needed to reach f, starting at
// f's family and walking upward while stopAtFamily sorts before the current
// family. Aliases already present in registered are skipped; newly emitted
// aliases are added to it, so no alias is ever joined twice for one set.
//
// The comparison is ordinal on the path strings, not on depth: any alias that
// is already part of the query can serve as the stop boundary.
//
// Lines are returned outermost first so that every ON condition only
// references aliases joined before it. A family without a join path emits
// nothing.
func (f FieldPath) JoinClause(ctx context.Context, r Resolver, db, stopAtFamily string, registered AliasSet, logger *slog.Logger) (string, error) {
	if f.IsEmpty() {
		return "", nil
	}

	var lines []string
	for family := f.Family(); family != "" && stopAtFamily < family; family = Family(family) {
		alias := Alias(family)
		if registered.Has(alias) {
			continue
		}

		on, err := r.ResolveJoin(ctx, db, family)
		if err != nil {
			return "", fmt.Errorf("resolve join %q: %w", family, err)
		}
		if on == family {
			if logger != nil {
				logger.Warn("no join path for family",
					"family", family,
					"database", db,
					"field", f.Code,
				)
			}
			continue
		}

		origin, err := r.ResolveAlias(ctx, Leaf(family))
		if err != nil {
			return "", fmt.Errorf("resolve alias %q: %w", Leaf(family), err)
		}
		origin = strings.ReplaceAll(origin, DatabaseToken, db)

		registered.Add(alias)
		lines = append(lines, fmt.Sprintf("LEFT OUTER JOIN %s %s ON %s", origin, bracket(alias), on))
	}

	// Collected innermost first.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n"), nil
}
