package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/araddon/dateparse"

	"github.com/roach88/ledgerql/internal/catalog"
	"github.com/roach88/ledgerql/internal/compiler"
	"github.com/roach88/ledgerql/internal/query"
	"github.com/roach88/ledgerql/internal/store"
	"github.com/roach88/ledgerql/internal/testutil"
)

// DefaultClock is the date used when a scenario sets no clock.
const DefaultClock = "2024-01-01"

// RequestID is the fixed request ID of every harness compilation.
const RequestID = "harness-request"

// Options configures a harness run.
type Options struct {
	// Logger receives compiler logs. Nil discards them.
	Logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store for isolation:
//  1. Load and compile the CUE catalog
//  2. Import its documents into the store
//  3. Compile each step against the store, recording compilations
//  4. Evaluate each step's expectation
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cat, err := catalog.Load(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	docs, err := cat.Documents()
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}

	st, err := store.OpenWithLogger(":memory:", logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	for _, d := range docs {
		ref := store.DocumentRef{Kind: d.Kind, Database: d.Database, Name: d.Name}
		if _, err := st.PutDocument(ctx, ref, d.Body); err != nil {
			return nil, fmt.Errorf("failed to import catalog: %w", err)
		}
	}

	clockText := scenario.Clock
	if clockText == "" {
		clockText = DefaultClock
	}
	now, err := parseClock(clockText)
	if err != nil {
		return nil, fmt.Errorf("clock: %w", err)
	}
	clock := testutil.NewFixedClock(now.Year(), now.Month(), now.Day())

	comp, err := compiler.New(st, compiler.Options{
		DefaultLedger: scenario.DefaultLedger,
		Clock:         clock,
		IDs:           testutil.NewFixedIDGenerator(RequestID),
		Recorder:      st,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		got := runStep(ctx, comp, step)
		result.Steps = append(result.Steps, got)
		for _, err := range EvaluateExpect(i, got, step.Expect) {
			result.AddError(err.Error())
		}
	}

	log, err := st.Compilations(ctx, 0)
	if err != nil {
		return nil, err
	}
	result.Compilations = len(log)

	return result, nil
}

func runStep(ctx context.Context, comp *compiler.Compiler, step Step) StepResult {
	got := StepResult{Formula: step.Formula}

	mode, err := query.ParseMode(step.Mode)
	if err != nil {
		got.Error, got.ErrorKind = err.Error(), KindInternal
		return got
	}

	out, err := comp.Compile(ctx, compiler.Input{
		Formula: step.Formula,
		Params:  step.Params,
		Mode:    mode,
		Light:   step.Light,
	})
	if err != nil {
		got.Error, got.ErrorKind = err.Error(), ErrorKind(err)
		return got
	}

	got.SQL = out.SQL
	got.Connection = out.Connection
	got.CompilationID = out.CompilationID
	return got
}

func parseClock(s string) (time.Time, error) {
	return dateparse.ParseIn(s, time.UTC)
}
