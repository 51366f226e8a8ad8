package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/ledgerql/internal/fieldpath"
	"github.com/roach88/ledgerql/internal/predicate"
)

// LedgerToken is replaced by the ledger code inside table origins.
const LedgerToken = "{LEDGER}"

// DefaultLedger is used when a request names no ledger.
const DefaultLedger = "A"

// RendererOptions configures a Renderer.
type RendererOptions struct {
	// DefaultLedger replaces {LEDGER} when the request has no ledger slot.
	// Empty means DefaultLedger.
	DefaultLedger string

	Logger *slog.Logger
}

// Renderer turns populated requests into SQL text.
type Renderer struct {
	resolver      fieldpath.Resolver
	predicates    *predicate.Compiler
	defaultLedger string
	logger        *slog.Logger
}

// NewRenderer creates a Renderer resolving tables and joins through resolver
// and compiling filters with predicates.
func NewRenderer(resolver fieldpath.Resolver, predicates *predicate.Compiler, opts RendererOptions) *Renderer {
	if predicates == nil {
		predicates = predicate.NewCompiler(nil)
	}
	ledger := opts.DefaultLedger
	if ledger == "" {
		ledger = DefaultLedger
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{
		resolver:      resolver,
		predicates:    predicates,
		defaultLedger: ledger,
		logger:        logger,
	}
}

// RenderSQL renders the request with r. See Renderer.Render.
func (q *Request) RenderSQL(ctx context.Context, r *Renderer) (string, error) {
	return r.Render(ctx, q)
}

// Render returns the SQL text for q and marks it rendered:
//
//	SELECT <outputs or *>
//	FROM <origin> [<table>]
//	<LEFT OUTER JOIN lines, by family>
//	WHERE <filters AND-ed>
//	GROUP BY <non-aggregated outputs>
//
// WHERE is omitted when no filter contributes a fragment. GROUP BY is present
// only when at least one output aggregates and at least one does not.
func (r *Renderer) Render(ctx context.Context, q *Request) (string, error) {
	if q.rendered {
		return "", ErrRendered
	}
	if q.table == "" {
		return "", ErrNoTarget
	}
	db := q.database.Value

	from, err := r.fromClause(ctx, q)
	if err != nil {
		return "", err
	}
	joins, err := r.joinClauses(ctx, q, db)
	if err != nil {
		return "", err
	}

	lines := []string{"SELECT " + selectList(q.outputs), from}
	lines = append(lines, joins...)
	if where := r.whereClause(q.filters); where != "" {
		lines = append(lines, "WHERE "+where)
	}
	if group := groupBy(q.outputs); group != "" {
		lines = append(lines, "GROUP BY "+group)
	}

	q.rendered = true
	sql := strings.Join(lines, "\n")
	r.logger.Debug("request rendered",
		"request_id", q.id,
		"database", db,
		"table", q.table,
		"outputs", len(q.outputs),
		"filters", len(q.filters),
		"joins", len(joins),
	)
	return sql, nil
}

func (r *Renderer) fromClause(ctx context.Context, q *Request) (string, error) {
	origin, err := r.resolver.ResolveAlias(ctx, q.table)
	if err != nil {
		return "", fmt.Errorf("resolve table %q: %w", q.table, err)
	}
	ledger := q.ledger.Value
	if ledger == "" {
		ledger = r.defaultLedger
	}
	origin = strings.ReplaceAll(origin, fieldpath.DatabaseToken, q.database.Value)
	origin = strings.ReplaceAll(origin, LedgerToken, ledger)
	return fmt.Sprintf("FROM %s [%s]", origin, q.table), nil
}

// joinClauses collects the join lines of every output and filter field,
// ordered by family, sharing one alias set seeded with the base table.
func (r *Renderer) joinClauses(ctx context.Context, q *Request, db string) ([]string, error) {
	var fields []fieldpath.FieldPath
	fields = append(fields, q.outputs...)
	for _, f := range q.filters {
		if f != nil && !f.Field.IsEmpty() {
			fields = append(fields, f.Field)
		}
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Family() < fields[j].Family()
	})

	registered := fieldpath.AliasSet{}
	registered.Add(q.table)

	var lines []string
	for _, f := range fields {
		clause, err := f.JoinClause(ctx, r.resolver, db, q.table, registered, r.logger)
		if err != nil {
			return nil, err
		}
		if clause != "" {
			lines = append(lines, strings.Split(clause, "\n")...)
		}
	}
	return lines, nil
}

func (r *Renderer) whereClause(filters []*predicate.Filter) string {
	var parts []string
	for _, f := range filters {
		if frag := r.predicates.Compile(f); frag != "" {
			parts = append(parts, frag)
		}
	}
	return strings.Join(parts, " AND ")
}

// selectList renders outputs with unique bracketed column aliases.
func selectList(outputs []fieldpath.FieldPath) string {
	if len(outputs) == 0 {
		return "*"
	}
	used := make(map[string]bool, len(outputs))
	cols := make([]string, len(outputs))
	for i, f := range outputs {
		alias := uniqueAlias(columnAlias(f), used)
		cols[i] = fmt.Sprintf("%s AS [%s]", f.RenderAggregate(), strings.ReplaceAll(alias, "]", "]]"))
	}
	return strings.Join(cols, ", ")
}

func columnAlias(f fieldpath.FieldPath) string {
	if d := strings.TrimSpace(f.Description); d != "" {
		return d
	}
	return f.Leaf()
}

func uniqueAlias(alias string, used map[string]bool) string {
	candidate := alias
	for n := 2; used[strings.ToUpper(candidate)]; n++ {
		candidate = alias + " " + strconv.Itoa(n)
	}
	used[strings.ToUpper(candidate)] = true
	return candidate
}

func groupBy(outputs []fieldpath.FieldPath) string {
	aggregated := false
	var plain []string
	for _, f := range outputs {
		if f.Aggregate != "" {
			aggregated = true
			continue
		}
		plain = append(plain, f.RenderColumn())
	}
	if !aggregated {
		return ""
	}
	return strings.Join(plain, ", ")
}
