package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ledgerql/internal/schema"
)

//go:embed schema.cue
var schemaCUE string

// Catalog is the compiled form of a CUE catalog: the global alias map and
// the per-database tables, joins and categories.
type Catalog struct {
	Aliases   map[string]string
	Databases []Database
}

// Database holds the documents of one database. Tables are sorted by
// origin and joins by code.
type Database struct {
	Name       string
	Tables     []Table
	Joins      []schema.JoinRow
	Categories map[string]string
}

// Table is one field document keyed by its origin.
type Table struct {
	Origin string
	Doc    schema.FieldDocument
	Pos    token.Pos
}

// Document is an encoded schema document with the key it is stored under.
type Document struct {
	Kind     schema.DocumentKind
	Database string
	Name     string
	Body     []byte
}

// fieldSpec mirrors #Field for decoding.
type fieldSpec struct {
	Code        string `json:"code"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Ref         string `json:"ref,omitempty"`
}

// tableSpec mirrors #Table for decoding.
type tableSpec struct {
	Table      string      `json:"table,omitempty"`
	Connection string      `json:"connection,omitempty"`
	Fields     []fieldSpec `json:"fields"`
}

// Compile checks v against the catalog schema and extracts a Catalog.
//
// The CUE value is the root of a catalog package, e.g.:
//
//	aliases: LA: "{DB}_{LEDGER}_SALFLDG"
//	databases: PK1: {
//		tables: "{DB}_{LEDGER}_SALFLDG": {
//			connection: "sunsystems"
//			fields: [{code: "ACCNT_CODE", name: "Account Code"}]
//		}
//		joins: "LA\\CA": "[CA].[ACNT_CODE] = [LA].[ACCNT_CODE]"
//		categories: A01: "Department"
//	}
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := v.Context().CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Catalog"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{Aliases: map[string]string{}}

	if aliases := v.LookupPath(cue.ParsePath("aliases")); aliases.Exists() {
		if err := aliases.Decode(&cat.Aliases); err != nil {
			return nil, formatCUEError(err)
		}
	}

	dbs := v.LookupPath(cue.ParsePath("databases"))
	if !dbs.Exists() {
		return cat, nil
	}
	iter, err := dbs.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		db, err := compileDatabase(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		cat.Databases = append(cat.Databases, *db)
	}
	sort.Slice(cat.Databases, func(i, j int) bool {
		return cat.Databases[i].Name < cat.Databases[j].Name
	})

	return cat, nil
}

func compileDatabase(name string, v cue.Value) (*Database, error) {
	db := &Database{Name: name, Categories: map[string]string{}}

	if tables := v.LookupPath(cue.ParsePath("tables")); tables.Exists() {
		iter, err := tables.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			table, err := compileTable(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			db.Tables = append(db.Tables, *table)
		}
		sort.Slice(db.Tables, func(i, j int) bool {
			return db.Tables[i].Origin < db.Tables[j].Origin
		})
	}

	if joins := v.LookupPath(cue.ParsePath("joins")); joins.Exists() {
		var on map[string]string
		if err := joins.Decode(&on); err != nil {
			return nil, formatCUEError(err)
		}
		for code, cond := range on {
			db.Joins = append(db.Joins, schema.JoinRow{Code: code, On: cond})
		}
		sort.Slice(db.Joins, func(i, j int) bool {
			return db.Joins[i].Code < db.Joins[j].Code
		})
	}

	if categories := v.LookupPath(cue.ParsePath("categories")); categories.Exists() {
		if err := categories.Decode(&db.Categories); err != nil {
			return nil, formatCUEError(err)
		}
	}

	return db, nil
}

func compileTable(origin string, v cue.Value) (*Table, error) {
	var spec tableSpec
	if err := v.Decode(&spec); err != nil {
		return nil, formatCUEError(err)
	}

	doc := schema.FieldDocument{Table: spec.Table, Connection: spec.Connection}
	for i, f := range spec.Fields {
		row := schema.FieldRow{
			Code:        f.Code,
			Name:        f.Name,
			Type:        f.Type,
			Description: f.Description,
			Ref:         f.Ref,
		}
		if row.IsNode() && row.Ref == "" {
			return nil, &CompileError{
				Field:   fmt.Sprintf("tables.%q.fields[%d]", origin, i),
				Message: fmt.Sprintf("NODE field %s requires ref", row.Code),
				Pos:     v.LookupPath(cue.MakePath(cue.Str("fields"), cue.Index(i))).Pos(),
			}
		}
		doc.Fields = append(doc.Fields, row)
	}

	return &Table{Origin: origin, Doc: doc, Pos: v.Pos()}, nil
}

// Documents encodes the catalog as schema documents: the alias document
// first, then per database its field documents, joins and categories.
// Empty join and category sets produce no document.
func (c *Catalog) Documents() ([]Document, error) {
	var docs []Document

	if len(c.Aliases) > 0 {
		body, err := schema.Encode(schema.AliasDocument{Aliases: c.Aliases})
		if err != nil {
			return nil, fmt.Errorf("encode aliases: %w", err)
		}
		docs = append(docs, Document{Kind: schema.DocAliases, Body: body})
	}

	for _, db := range c.Databases {
		for _, t := range db.Tables {
			body, err := schema.Encode(t.Doc)
			if err != nil {
				return nil, fmt.Errorf("encode %s/%s: %w", db.Name, t.Origin, err)
			}
			docs = append(docs, Document{Kind: schema.DocFields, Database: db.Name, Name: t.Origin, Body: body})
		}
		if len(db.Joins) > 0 {
			body, err := schema.Encode(schema.JoinDocument{Joins: db.Joins})
			if err != nil {
				return nil, fmt.Errorf("encode %s joins: %w", db.Name, err)
			}
			docs = append(docs, Document{Kind: schema.DocJoins, Database: db.Name, Body: body})
		}
		if len(db.Categories) > 0 {
			body, err := schema.Encode(schema.CategoryDocument{Categories: db.Categories})
			if err != nil {
				return nil, fmt.Errorf("encode %s categories: %w", db.Name, err)
			}
			docs = append(docs, Document{Kind: schema.DocCategories, Database: db.Name, Body: body})
		}
	}

	return docs, nil
}

// Supplier returns an in-memory schema.Supplier serving the catalog.
func (c *Catalog) Supplier() (*schema.MemorySupplier, error) {
	docs, err := c.Documents()
	if err != nil {
		return nil, err
	}
	s := schema.NewMemorySupplier()
	for _, d := range docs {
		switch d.Kind {
		case schema.DocAliases:
			s.SetAliasDocument(d.Body)
		case schema.DocFields:
			s.SetFieldDocument(d.Database, d.Name, d.Body)
		case schema.DocJoins:
			s.SetJoinDocument(d.Database, d.Body)
		case schema.DocCategories:
			s.SetCategoryDocument(d.Database, d.Body)
		}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
