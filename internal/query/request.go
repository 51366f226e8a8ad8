// Package query holds the QueryRequest accumulator and renders it to SQL.
//
// A Request is created per formula evaluation, populated once by the formula
// parser and rendered once. Every mutator returns ErrRendered after a
// successful render.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/ledgerql/internal/fieldpath"
	"github.com/roach88/ledgerql/internal/predicate"
)

// ErrRendered is returned when a request is modified or rendered again after
// it has been rendered.
var ErrRendered = errors.New("query: request already rendered")

// ErrNoTarget is returned when rendering a request without a table.
var ErrNoTarget = errors.New("query: request has no table")

// Mode selects the processing mode of a request.
type Mode int

const (
	// ModeSummary aggregates outputs; outputs without an explicit aggregate
	// default to COUNT in light parsing.
	ModeSummary Mode = iota

	// ModeDetails lists rows without default aggregation.
	ModeDetails
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSummary:
		return "summary"
	case ModeDetails:
		return "details"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "summary":
		return ModeSummary, nil
	case "details", "detail":
		return ModeDetails, nil
	default:
		return ModeSummary, fmt.Errorf("unknown mode %q (want summary or details)", s)
	}
}

// NoParam marks a Slot that was written literally.
const NoParam = -1

// Slot is one target value of a request (database or ledger). It may be
// written literally or indirectly through a {P}N parameter token.
type Slot struct {
	// Raw is the text as written in the formula.
	Raw string

	// Param is the parameter index, or NoParam.
	Param int

	// Reference is the parameter reference the index resolved to.
	Reference string

	// Value is the resolved literal.
	Value string
}

// Literal returns a Slot holding a literal value.
func Literal(v string) Slot {
	return Slot{Raw: v, Param: NoParam, Value: v}
}

// IsIndirect reports whether the slot was written as a parameter token.
func (s Slot) IsIndirect() bool {
	return s.Param != NoParam
}

// IsZero reports whether the slot holds nothing.
func (s Slot) IsZero() bool {
	return s.Raw == "" && s.Value == ""
}

// String returns the resolved value.
func (s Slot) String() string {
	return s.Value
}

// Request accumulates the parts of one query.
type Request struct {
	id   string
	mode Mode

	database   Slot
	table      string
	ledger     Slot
	connection string

	outputs []fieldpath.FieldPath
	filters []*predicate.Filter

	rendered bool
}

// NewRequest creates an empty request. A nil ids uses UUIDv7Generator.
func NewRequest(mode Mode, ids IDGenerator) *Request {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Request{
		id:       ids.Generate(),
		mode:     mode,
		database: Slot{Param: NoParam},
		ledger:   Slot{Param: NoParam},
	}
}

func (q *Request) ID() string         { return q.id }
func (q *Request) Mode() Mode         { return q.mode }
func (q *Request) Database() Slot     { return q.database }
func (q *Request) Table() string      { return q.table }
func (q *Request) Ledger() Slot       { return q.ledger }
func (q *Request) Connection() string { return q.connection }
func (q *Request) Rendered() bool     { return q.rendered }

// Outputs returns a copy of the output fields in order.
func (q *Request) Outputs() []fieldpath.FieldPath {
	out := make([]fieldpath.FieldPath, len(q.outputs))
	copy(out, q.outputs)
	return out
}

// Filters returns the filters in order.
func (q *Request) Filters() []*predicate.Filter {
	out := make([]*predicate.Filter, len(q.filters))
	copy(out, q.filters)
	return out
}

// IsEmpty reports whether nothing has been set on the request.
func (q *Request) IsEmpty() bool {
	return q.table == "" && q.database.IsZero() && len(q.outputs) == 0 && len(q.filters) == 0
}

// SetTarget sets the database and table.
func (q *Request) SetTarget(db Slot, table string) error {
	if q.rendered {
		return ErrRendered
	}
	q.database = db
	q.table = strings.TrimSpace(table)
	return nil
}

// SetLedger sets the ledger slot substituted for {LEDGER} in table origins.
func (q *Request) SetLedger(ledger Slot) error {
	if q.rendered {
		return ErrRendered
	}
	q.ledger = ledger
	return nil
}

// SetConnection records the connection identifier of the target table.
func (q *Request) SetConnection(conn string) error {
	if q.rendered {
		return ErrRendered
	}
	q.connection = conn
	return nil
}

// AddOutput appends an output column. Empty fields are ignored.
func (q *Request) AddOutput(f fieldpath.FieldPath) error {
	if q.rendered {
		return ErrRendered
	}
	if f.IsEmpty() {
		return nil
	}
	q.outputs = append(q.outputs, f)
	return nil
}

// AddFilter appends a filter. Nil filters are ignored.
func (q *Request) AddFilter(f *predicate.Filter) error {
	if q.rendered {
		return ErrRendered
	}
	if f == nil {
		return nil
	}
	q.filters = append(q.filters, f)
	return nil
}
