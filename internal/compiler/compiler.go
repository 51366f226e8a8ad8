// Package compiler turns formula text into SQL end to end: it parses the
// formula against the schema registry, renders the populated request and
// optionally appends the result to a compilation log.
package compiler

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ledgerql/internal/fieldpath"
	"github.com/roach88/ledgerql/internal/formula"
	"github.com/roach88/ledgerql/internal/predicate"
	"github.com/roach88/ledgerql/internal/query"
	"github.com/roach88/ledgerql/internal/schema"
	"github.com/roach88/ledgerql/internal/store"
)

// Recorder appends compilations to a log. *store.Store implements it.
type Recorder interface {
	RecordCompilation(ctx context.Context, c store.Compilation) (string, bool, error)
}

// Options configures a Compiler. Zero values select the defaults.
type Options struct {
	// CacheSize bounds the registry's table cache (schema.DefaultCacheSize).
	CacheSize int

	// DefaultLedger replaces {LEDGER} when a formula names none.
	DefaultLedger string

	// Clock supplies "today" for the C sentinel (fieldpath.SystemClock).
	Clock fieldpath.Clock

	// IDs generates request IDs (query.UUIDv7Generator).
	IDs query.IDGenerator

	// Recorder, when set, receives every successful compilation.
	Recorder Recorder

	Logger *slog.Logger
}

// Input is one compilation request.
type Input struct {
	Formula string
	Params  []string
	Mode    query.Mode

	// Light parses without parameter indirection; outputs default to COUNT
	// outside details mode.
	Light bool
}

// Output is the result of a successful compilation.
type Output struct {
	RequestID  string
	Database   string
	Table      string
	Connection string
	SQL        string

	// CompilationID is set when a Recorder is configured. Recorded is false
	// when the log already held the same compilation.
	CompilationID string
	Recorded      bool
}

// Compiler compiles formulas against one schema supplier. It is safe for
// concurrent use; each Compile call works on its own request.
type Compiler struct {
	registry *schema.Registry
	parser   *formula.Parser
	renderer *query.Renderer
	ids      query.IDGenerator
	recorder Recorder
	logger   *slog.Logger
}

// New creates a Compiler reading schema documents from supplier.
func New(supplier schema.Supplier, opts Options) (*Compiler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	reg, err := schema.NewRegistry(supplier, schema.Options{CacheSize: opts.CacheSize, Logger: logger})
	if err != nil {
		return nil, err
	}

	literals := fieldpath.NewLiterals(opts.Clock, logger)
	renderer := query.NewRenderer(reg, predicate.NewCompiler(literals), query.RendererOptions{
		DefaultLedger: opts.DefaultLedger,
		Logger:        logger,
	})

	ids := opts.IDs
	if ids == nil {
		ids = query.UUIDv7Generator{}
	}

	return &Compiler{
		registry: reg,
		parser:   formula.NewParser(reg, logger),
		renderer: renderer,
		ids:      ids,
		recorder: opts.Recorder,
		logger:   logger,
	}, nil
}

// Registry returns the schema registry the compiler resolves fields with.
func (c *Compiler) Registry() *schema.Registry {
	return c.registry
}

// Compile parses in.Formula into a fresh request and renders it. Empty
// formulas fail with query.ErrNoTarget since there is nothing to select from.
func (c *Compiler) Compile(ctx context.Context, in Input) (*Output, error) {
	req := query.NewRequest(in.Mode, c.ids)

	var err error
	if in.Light {
		err = c.parser.ParseLight(ctx, in.Formula, req)
	} else {
		err = c.parser.ParseWithParameters(ctx, in.Formula, in.Params, req)
	}
	if err != nil {
		return nil, err
	}

	sql, err := req.RenderSQL(ctx, c.renderer)
	if err != nil {
		return nil, err
	}

	out := &Output{
		RequestID:  req.ID(),
		Database:   req.Database().Value,
		Table:      req.Table(),
		Connection: req.Connection(),
		SQL:        sql,
	}

	if c.recorder != nil {
		id, inserted, err := c.recorder.RecordCompilation(ctx, store.Compilation{
			RequestID: out.RequestID,
			Formula:   in.Formula,
			Params:    in.Params,
			Database:  out.Database,
			Table:     out.Table,
			SQL:       sql,
		})
		if err != nil {
			return nil, fmt.Errorf("record compilation: %w", err)
		}
		out.CompilationID = id
		out.Recorded = inserted
	}

	c.logger.Info("formula compiled",
		"request_id", out.RequestID,
		"database", out.Database,
		"table", out.Table,
		"recorded", out.Recorded,
	)
	return out, nil
}
