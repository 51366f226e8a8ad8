package formula

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/ledgerql/internal/fieldpath"
	"github.com/roach88/ledgerql/internal/predicate"
	"github.com/roach88/ledgerql/internal/query"
)

// LedgerKey is the K= field code diverted to the request's ledger slot.
const LedgerKey = "LA/Ledger"

// aggregates maps E= digits to aggregate functions.
var aggregates = map[string]string{
	"1": fieldpath.AggSum,
	"2": fieldpath.AggCount,
	"3": fieldpath.AggAvg,
	"4": fieldpath.AggMin,
	"5": fieldpath.AggMax,
	"6": fieldpath.AggDistinctSum,
	"7": fieldpath.AggDistinctCount,
	"8": fieldpath.AggDistinctAvg,
}

// Aggregate returns the aggregate function for an E= digit, or "".
func Aggregate(digit string) string {
	return aggregates[strings.TrimSpace(digit)]
}

// FieldSource looks up fields and table metadata. *schema.Registry
// satisfies it.
type FieldSource interface {
	Field(ctx context.Context, db, table, code string) (fieldpath.FieldPath, error)
	Connection(ctx context.Context, db, table string) (string, error)
}

// Parser populates query requests from formula text.
type Parser struct {
	fields FieldSource
	logger *slog.Logger
}

// NewParser creates a Parser resolving field codes through fields.
func NewParser(fields FieldSource, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{fields: fields, logger: logger}
}

// ParseWithParameters parses text, resolves its {P}N tokens against the R
// declarations and values, and populates req. Empty text is a no-op.
//
// req is modified only when the whole formula parsed; on error it is left as
// it was.
func (p *Parser) ParseWithParameters(ctx context.Context, text string, values []string, req *query.Request) error {
	f, ok, err := p.scan(text, req)
	if err != nil || !ok {
		return err
	}
	f, err = ResolveReferences(f)
	if err != nil {
		return err
	}
	f, err = ResolveValues(f, values)
	if err != nil {
		return err
	}
	return p.apply(ctx, f, false, req)
}

// ParseLight parses text that has no parameter indirection and populates
// req. Outputs without an E= aggregate default to COUNT unless the request
// is in details mode. Empty text is a no-op.
func (p *Parser) ParseLight(ctx context.Context, text string, req *query.Request) error {
	f, ok, err := p.scan(text, req)
	if err != nil || !ok {
		return err
	}
	return p.apply(ctx, f, true, req)
}

func (p *Parser) scan(text string, req *query.Request) (Formula, bool, error) {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return Formula{}, false, nil
	}
	if req.Rendered() {
		return Formula{}, false, query.ErrRendered
	}
	f, err := Scan(text)
	if err != nil {
		return Formula{}, false, err
	}
	return f, true, nil
}

// pending accumulates the clauses of the filter or output being built.
type pending struct {
	from, to  Value
	op        predicate.Operator
	negate    bool
	hasFilter bool
	aggregate string
	hasAgg    bool
	filterPos int
	outputPos int
}

// plan is everything a formula contributes, built before req is touched.
type plan struct {
	database   query.Slot
	table      string
	ledger     query.Slot
	hasLedger  bool
	connection string
	outputs    []fieldpath.FieldPath
	filters    []*predicate.Filter
}

func (p *Parser) apply(ctx context.Context, f Formula, light bool, req *query.Request) error {
	pl, err := p.build(ctx, f, light, req.Mode())
	if err != nil {
		return err
	}

	if err := req.SetTarget(pl.database, pl.table); err != nil {
		return err
	}
	if pl.hasLedger {
		if err := req.SetLedger(pl.ledger); err != nil {
			return err
		}
	}
	if err := req.SetConnection(pl.connection); err != nil {
		return err
	}
	for _, o := range pl.outputs {
		if err := req.AddOutput(o); err != nil {
			return err
		}
	}
	for _, flt := range pl.filters {
		if err := req.AddFilter(flt); err != nil {
			return err
		}
	}

	p.logger.Debug("formula parsed",
		"request_id", req.ID(),
		"database", pl.database.Value,
		"table", pl.table,
		"outputs", len(pl.outputs),
		"filters", len(pl.filters),
		"light", light,
	)
	return nil
}

func (p *Parser) build(ctx context.Context, f Formula, light bool, mode query.Mode) (*plan, error) {
	// Table names select schema documents, so they must be concrete here.
	if piece, ok := f.Table.unresolved(); ok {
		return nil, errorf(piece.Pos, "table parameter %s has no value", piece.Text)
	}
	pl := &plan{
		database: f.Database.Slot(),
		table:    strings.TrimSpace(f.Table.String()),
	}
	db := strings.TrimSpace(pl.database.Value)
	pl.database.Value = db

	conn, err := p.fields.Connection(ctx, db, pl.table)
	if err != nil {
		return nil, err
	}
	pl.connection = conn

	cur := pending{op: predicate.OpLegacy}
	for _, c := range f.Clauses {
		switch c.Key {
		case KeyReference:
			// Consumed by ResolveReferences.

		case KeyFrom:
			cur.from, cur.hasFilter = c.Value, true
			cur.filterPos = pick(cur.filterPos, c.Pos)
		case KeyTo:
			cur.to, cur.hasFilter = c.Value, true
			cur.filterPos = pick(cur.filterPos, c.Pos)
		case KeyOperator:
			cur.op, cur.hasFilter = predicate.ParseOperator(c.Value.String()), true
			cur.filterPos = pick(cur.filterPos, c.Pos)
		case KeyNegate:
			cur.negate, cur.hasFilter = truthy(c.Value.String()), true
			cur.filterPos = pick(cur.filterPos, c.Pos)

		case KeyField:
			code := strings.TrimSpace(c.Value.String())
			if code == "" {
				return nil, errorf(c.Value.Pos, "K= needs a field code")
			}
			if strings.EqualFold(code, LedgerKey) {
				pl.ledger, pl.hasLedger = cur.from.Slot(), true
			} else {
				field, err := p.fields.Field(ctx, db, pl.table, code)
				if err != nil {
					return nil, err
				}
				pl.filters = append(pl.filters,
					predicate.NewFilter(field, cur.op, cur.negate, cur.from.String(), cur.to.String()))
			}
			cur = pending{op: predicate.OpLegacy, aggregate: cur.aggregate, hasAgg: cur.hasAgg, outputPos: cur.outputPos}

		case KeyAggregate:
			cur.aggregate, cur.hasAgg = Aggregate(c.Value.String()), true
			cur.outputPos = pick(cur.outputPos, c.Pos)

		case KeyOutput:
			raw := strings.TrimSpace(c.Value.String())
			code, ok := strings.CutPrefix(raw, "/")
			if !ok || strings.TrimSpace(code) == "" {
				return nil, errorf(c.Value.Pos, "O= needs /<field code>, got %q", raw)
			}
			field, err := p.fields.Field(ctx, db, pl.table, code)
			if err != nil {
				return nil, err
			}
			agg := cur.aggregate
			if !cur.hasAgg && light && mode != query.ModeDetails {
				agg = fieldpath.AggCount
			}
			pl.outputs = append(pl.outputs, field.WithAggregate(agg))
			cur.aggregate, cur.hasAgg, cur.outputPos = "", false, 0
		}
	}

	if cur.hasFilter {
		return nil, errorf(cur.filterPos, "filter values without a closing K=")
	}
	if cur.hasAgg {
		return nil, errorf(cur.outputPos, "aggregate without a closing O=")
	}
	return pl, nil
}

// pick keeps the first recorded position; 0 means unset.
func pick(current, pos int) int {
	if current == 0 {
		return pos
	}
	return current
}

func truthy(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "1", "Y", "YES", "TRUE":
		return true
	default:
		return false
	}
}
