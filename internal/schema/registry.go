package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/ledgerql/internal/fieldpath"
)

// DefaultCacheSize is the number of expanded tables the registry keeps when
// Options.CacheSize is zero.
const DefaultCacheSize = 64

// maxNodeDepth bounds NODE expansion independently of cycle detection.
const maxNodeDepth = 32

// Options configures a Registry.
type Options struct {
	// CacheSize is the number of (database, table) field lists kept. A size
	// of 1 keeps only the most recently requested table.
	CacheSize int

	Logger *slog.Logger
}

// Stats reports table cache activity.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

type tableKey struct {
	db    string
	table string
}

type tableEntry struct {
	fields     []fieldpath.FieldPath
	connection string
}

// Registry resolves schema metadata for the compiler. Field lists are built
// lazily and kept in an LRU cache; join, alias and category maps are loaded
// once and kept until Invalidate. A Registry is safe for concurrent use.
type Registry struct {
	supplier Supplier
	logger   *slog.Logger
	tables   *lru.Cache[tableKey, *tableEntry]

	hits   atomic.Int64
	misses atomic.Int64

	mu         sync.Mutex
	aliases    map[string]string
	joins      map[string]map[string]string
	categories map[string]map[string]string
}

// NewRegistry creates a Registry reading documents from supplier.
func NewRegistry(supplier Supplier, opts Options) (*Registry, error) {
	if supplier == nil {
		return nil, errors.New("schema: supplier is required")
	}
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	tables, err := lru.New[tableKey, *tableEntry](size)
	if err != nil {
		return nil, fmt.Errorf("schema: create table cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		supplier:   supplier,
		logger:     logger,
		tables:     tables,
		joins:      make(map[string]map[string]string),
		categories: make(map[string]map[string]string),
	}, nil
}

// Fields returns the fields of table in db, with NODE fields expanded. The
// result is a fresh slice the caller may modify.
func (r *Registry) Fields(ctx context.Context, db, table string) ([]fieldpath.FieldPath, error) {
	entry, err := r.entry(ctx, db, table)
	if err != nil {
		return nil, err
	}
	out := make([]fieldpath.FieldPath, len(entry.fields))
	copy(out, entry.fields)
	return out, nil
}

// Field returns the field of table whose code is code, given either fully
// qualified (LA\CA\DESCR) or relative to the table (CA\DESCR).
func (r *Registry) Field(ctx context.Context, db, table, code string) (fieldpath.FieldPath, error) {
	entry, err := r.entry(ctx, db, table)
	if err != nil {
		return fieldpath.Empty, err
	}
	code = strings.TrimSpace(code)
	qualified := code
	if fieldpath.Root(code) != table || !strings.Contains(code, fieldpath.Delimiter) {
		qualified = table + fieldpath.Delimiter + code
	}
	for _, f := range entry.fields {
		if strings.EqualFold(f.Code, qualified) || strings.EqualFold(f.Code, code) {
			return f, nil
		}
	}
	return fieldpath.Empty, NewUnknownFieldError(db, table, code)
}

// Connection returns the connection identifier declared by the field
// document of table.
func (r *Registry) Connection(ctx context.Context, db, table string) (string, error) {
	entry, err := r.entry(ctx, db, table)
	if err != nil {
		return "", err
	}
	return entry.connection, nil
}

// Stats returns cache counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
		Entries: r.tables.Len(),
	}
}

// Invalidate drops every cached table and document map. The next lookup
// reloads from the supplier.
func (r *Registry) Invalidate() {
	r.tables.Purge()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases = nil
	r.joins = make(map[string]map[string]string)
	r.categories = make(map[string]map[string]string)

	r.logger.Debug("schema caches invalidated")
}

func (r *Registry) entry(ctx context.Context, db, table string) (*tableEntry, error) {
	key := tableKey{db: db, table: table}
	if e, ok := r.tables.Get(key); ok {
		r.hits.Add(1)
		return e, nil
	}
	r.misses.Add(1)

	e, err := r.build(ctx, db, table, nil)
	if err != nil {
		return nil, err
	}
	r.tables.Add(key, e)
	r.logger.Debug("table fields loaded",
		"database", db,
		"table", table,
		"fields", len(e.fields),
	)
	return e, nil
}

// build expands table into its field list. visiting holds the origins on the
// current NODE expansion path.
func (r *Registry) build(ctx context.Context, db, table string, visiting []string) (*tableEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	origin, err := r.ResolveAlias(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, v := range visiting {
		if v == origin {
			return nil, &SchemaError{
				Kind:     KindCycle,
				Document: DocFields,
				Database: db,
				Name:     origin,
				Message:  fmt.Sprintf("node expansion cycle: %s -> %s", strings.Join(visiting, " -> "), origin),
			}
		}
	}
	if len(visiting) >= maxNodeDepth {
		return nil, &SchemaError{
			Kind:     KindCycle,
			Document: DocFields,
			Database: db,
			Name:     origin,
			Message:  fmt.Sprintf("node expansion deeper than %d", maxNodeDepth),
		}
	}

	raw, err := r.supplier.FieldDocument(ctx, db, origin)
	if err != nil {
		return nil, fetchError(DocFields, db, origin, err)
	}
	doc, err := ParseFieldDocument(raw)
	if err != nil {
		return nil, malformedError(DocFields, db, origin, err)
	}

	path := append(visiting[:len(visiting):len(visiting)], origin)
	entry := &tableEntry{connection: doc.Connection}
	for _, row := range doc.Fields {
		code := table + fieldpath.Delimiter + strings.TrimSpace(row.Code)
		if !row.IsNode() {
			entry.fields = append(entry.fields, fieldpath.New(code, row.Label(), row.Type))
			continue
		}

		sub, err := r.build(ctx, db, row.Ref, path)
		if err != nil {
			return nil, err
		}
		for _, f := range sub.fields {
			entry.fields = append(entry.fields, f.AddMeToParent(code))
		}
	}
	return entry, nil
}

// ResolveAlias returns the origin of alias, or alias itself when the alias
// document does not name it.
func (r *Registry) ResolveAlias(ctx context.Context, alias string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aliases == nil {
		aliases, err := r.loadAliases(ctx)
		if err != nil {
			return "", err
		}
		r.aliases = aliases
	}
	if origin, ok := r.aliases[alias]; ok && origin != "" {
		return origin, nil
	}
	return alias, nil
}

func (r *Registry) loadAliases(ctx context.Context) (map[string]string, error) {
	raw, err := r.supplier.AliasDocument(ctx)
	if errors.Is(err, ErrDocumentNotFound) {
		r.logger.Debug("no alias document; aliases resolve to themselves")
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fetchError(DocAliases, "", "", err)
	}
	doc, err := ParseAliasDocument(raw)
	if err != nil {
		return nil, malformedError(DocAliases, "", "", err)
	}
	if doc.Aliases == nil {
		return map[string]string{}, nil
	}
	return doc.Aliases, nil
}

// ResolveJoin returns the ON condition for the family path code in db, or
// code itself when the join document does not name it.
func (r *Registry) ResolveJoin(ctx context.Context, db, code string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	joins, ok := r.joins[db]
	if !ok {
		raw, err := r.supplier.JoinDocument(ctx, db)
		if err != nil {
			return "", fetchError(DocJoins, db, "", err)
		}
		doc, err := ParseJoinDocument(raw)
		if err != nil {
			return "", malformedError(DocJoins, db, "", err)
		}
		joins = make(map[string]string, len(doc.Joins))
		for _, j := range doc.Joins {
			joins[j.Code] = j.On
		}
		r.joins[db] = joins
	}
	if on, ok := joins[code]; ok {
		return on, nil
	}
	return code, nil
}

// Categories returns the analysis category descriptions of db. A missing
// category document yields an empty map.
func (r *Registry) Categories(ctx context.Context, db string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cats, ok := r.categories[db]; ok {
		return cats, nil
	}
	raw, err := r.supplier.CategoryDocument(ctx, db)
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		r.logger.Debug("no category document", "database", db)
		r.categories[db] = map[string]string{}
		return r.categories[db], nil
	case err != nil:
		return nil, fetchError(DocCategories, db, "", err)
	}
	doc, err := ParseCategoryDocument(raw)
	if err != nil {
		return nil, malformedError(DocCategories, db, "", err)
	}
	cats := doc.Categories
	if cats == nil {
		cats = map[string]string{}
	}
	r.categories[db] = cats
	return cats, nil
}
