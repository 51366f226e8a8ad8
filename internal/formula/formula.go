// Package formula decodes the packed tag formula into a query request.
//
// Grammar:
//
//	<database>,<table>[,KEY=value]...
//
// Keys: R declares a parameter reference, F and T set the pending filter's
// lower and upper values, P its operator, N its negation, and K=<field>
// closes it. E=<digit> sets the pending output aggregate and O=/<field>
// closes the output. A value runs until the next ",KEY=" boundary.
//
// Any value may contain {P}N tokens (N 0-based). They are resolved in two
// passes: ResolveReferences against the R declarations, then ResolveValues
// against the caller's parameter values.
package formula

import (
	"strconv"
	"strings"

	"github.com/roach88/ledgerql/internal/query"
)

// Piece is a run of literal text or a single parameter token.
type Piece struct {
	// Text is the text as written; "{P}N" for parameter pieces.
	Text string

	// Param is the parameter index, or query.NoParam.
	Param int

	Reference string
	Value     string
	Resolved  bool
	Pos       int
}

// IsParam reports whether p is a parameter token.
func (p Piece) IsParam() bool {
	return p.Param != query.NoParam
}

// Value is a formula value: a sequence of pieces.
type Value struct {
	Pieces []Piece
	Pos    int
}

// Raw returns the value as written.
func (v Value) Raw() string {
	var sb strings.Builder
	for _, p := range v.Pieces {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// String returns the value with resolved parameters substituted. Unresolved
// parameter tokens are kept as written.
func (v Value) String() string {
	var sb strings.Builder
	for _, p := range v.Pieces {
		if p.IsParam() && p.Resolved {
			sb.WriteString(p.Value)
		} else {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Slot converts v into a request slot. A value consisting of a single
// parameter token keeps its index and reference.
func (v Value) Slot() query.Slot {
	if len(v.Pieces) == 1 && v.Pieces[0].IsParam() {
		p := v.Pieces[0]
		return query.Slot{Raw: p.Text, Param: p.Param, Reference: p.Reference, Value: v.String()}
	}
	return query.Slot{Raw: v.Raw(), Param: query.NoParam, Value: v.String()}
}

func (v Value) clone() Value {
	pieces := make([]Piece, len(v.Pieces))
	copy(pieces, v.Pieces)
	return Value{Pieces: pieces, Pos: v.Pos}
}

// Clause is one KEY=value pair.
type Clause struct {
	Key   string
	Value Value
	Pos   int
}

// Formula is the syntactic form of a formula.
type Formula struct {
	Database Value
	Table    Value
	Clauses  []Clause
}

// References returns the R declarations in order.
func (f Formula) References() []string {
	var refs []string
	for _, c := range f.Clauses {
		if c.Key == KeyReference {
			refs = append(refs, c.Value.String())
		}
	}
	return refs
}

func (f Formula) clone() Formula {
	out := Formula{
		Database: f.Database.clone(),
		Table:    f.Table.clone(),
		Clauses:  make([]Clause, len(f.Clauses)),
	}
	for i, c := range f.Clauses {
		out.Clauses[i] = Clause{Key: c.Key, Value: c.Value.clone(), Pos: c.Pos}
	}
	return out
}

// each calls fn for every value except the R declarations.
func (f *Formula) each(fn func(v *Value) error) error {
	if err := fn(&f.Database); err != nil {
		return err
	}
	if err := fn(&f.Table); err != nil {
		return err
	}
	for i := range f.Clauses {
		if f.Clauses[i].Key == KeyReference {
			continue
		}
		if err := fn(&f.Clauses[i].Value); err != nil {
			return err
		}
	}
	return nil
}

// Scan lexes text and groups the tokens into a Formula.
func Scan(text string) (Formula, error) {
	tokens, err := Lex(text)
	if err != nil {
		return Formula{}, err
	}

	// Header: everything before the first clause.
	i := 0
	for i < len(tokens) && tokens[i].Kind != TokenKey {
		i++
	}
	header, rest := tokens[:i], tokens[i:]

	comma := -1
	for j, tok := range header {
		if tok.Kind == TokenComma {
			comma = j
			break
		}
	}
	if comma < 0 {
		return Formula{}, errorf(len(text), "expected <database>,<table>")
	}

	var f Formula
	f.Database = collect(header[:comma], 0)
	f.Table = collect(header[comma+1:], header[comma].Pos+1)
	if strings.TrimSpace(f.Database.Raw()) == "" {
		return Formula{}, errorf(0, "missing database")
	}
	if strings.TrimSpace(f.Table.Raw()) == "" {
		return Formula{}, errorf(header[comma].Pos+1, "missing table")
	}

	for k := 0; k < len(rest); {
		key := rest[k]
		end := k + 1
		for end < len(rest) && rest[end].Kind != TokenKey {
			end++
		}
		f.Clauses = append(f.Clauses, Clause{
			Key:   key.Text,
			Value: collect(rest[k+1:end], key.Pos+len(key.Text)+2),
			Pos:   key.Pos,
		})
		k = end
	}
	return f, nil
}

// collect joins tokens into a Value; commas become literal text.
func collect(tokens []Token, pos int) Value {
	v := Value{Pos: pos}
	for _, tok := range tokens {
		if tok.Kind == TokenParam {
			v.Pieces = append(v.Pieces, Piece{Text: tok.Text, Param: tok.Param, Pos: tok.Pos})
			continue
		}
		n := len(v.Pieces)
		if n > 0 && !v.Pieces[n-1].IsParam() {
			v.Pieces[n-1].Text += tok.Text
			continue
		}
		v.Pieces = append(v.Pieces, Piece{Text: tok.Text, Param: query.NoParam, Pos: tok.Pos})
	}
	return v
}

// unresolved returns the first parameter piece without a value.
func (v Value) unresolved() (Piece, bool) {
	for _, p := range v.Pieces {
		if p.IsParam() && !p.Resolved {
			return p, true
		}
	}
	return Piece{}, false
}

func (v Value) hasParam() bool {
	for _, p := range v.Pieces {
		if p.IsParam() {
			return true
		}
	}
	return false
}

// ResolveReferences returns a copy of f in which every parameter token
// carries the reference declared by the matching R clause. Tokens without a
// declaration keep an empty reference. R declarations must be literal.
func ResolveReferences(f Formula) (Formula, error) {
	for _, c := range f.Clauses {
		if c.Key == KeyReference && c.Value.hasParam() {
			return Formula{}, errorf(c.Pos, "reference declaration cannot contain a parameter")
		}
	}
	refs := f.References()

	out := f.clone()
	_ = out.each(func(v *Value) error {
		for i := range v.Pieces {
			p := &v.Pieces[i]
			if p.IsParam() && p.Param < len(refs) {
				p.Reference = refs[p.Param]
			}
		}
		return nil
	})
	return out, nil
}

// ResolveValues returns a copy of f in which every parameter token takes the
// caller's value at its index.
func ResolveValues(f Formula, values []string) (Formula, error) {
	out := f.clone()
	err := out.each(func(v *Value) error {
		for i := range v.Pieces {
			p := &v.Pieces[i]
			if !p.IsParam() {
				continue
			}
			if p.Param >= len(values) {
				return errorf(p.Pos, "parameter %s has no value (%s supplied)", p.Text, strconv.Itoa(len(values)))
			}
			p.Value = values[p.Param]
			p.Resolved = true
		}
		return nil
	})
	if err != nil {
		return Formula{}, err
	}
	return out, nil
}
