package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerql/internal/fieldpath"
)

// DocumentKind names one of the four metadata documents.
type DocumentKind string

const (
	DocFields     DocumentKind = "fields"
	DocJoins      DocumentKind = "joins"
	DocAliases    DocumentKind = "aliases"
	DocCategories DocumentKind = "categories"
)

// FieldDocument enumerates the fields of one table origin.
//
//	table: SALFLDG
//	connection: sunsystems
//	fields:
//	  - code: ACCNT_CODE
//	    name: Account Code
//	  - code: AMOUNT
//	    type: N
//	  - code: CA
//	    type: NODE
//	    ref: CA
//
// Codes are relative to the table. A NODE field expands to the fields of the
// table named by ref, re-rooted under the node's own path.
type FieldDocument struct {
	Table      string     `yaml:"table"`
	Connection string     `yaml:"connection,omitempty"`
	Fields     []FieldRow `yaml:"fields"`
}

// FieldRow is one entry of a FieldDocument.
type FieldRow struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name,omitempty"`
	Type        string `yaml:"type,omitempty"`
	Description string `yaml:"description,omitempty"`
	Ref         string `yaml:"ref,omitempty"`
}

// IsNode reports whether the row expands into another table.
func (r FieldRow) IsNode() bool {
	return strings.EqualFold(strings.TrimSpace(r.Type), fieldpath.TypeNode)
}

// Label returns the human description, falling back to the name and code.
func (r FieldRow) Label() string {
	switch {
	case r.Description != "":
		return r.Description
	case r.Name != "":
		return r.Name
	default:
		return r.Code
	}
}

// JoinDocument lists the join conditions of one database, keyed by family
// path.
//
//	joins:
//	  - code: LA\CA
//	    on: "[CA].[ACNT_CODE] = [LA].[ACCNT_CODE]"
type JoinDocument struct {
	Joins []JoinRow `yaml:"joins"`
}

// JoinRow is one entry of a JoinDocument.
type JoinRow struct {
	Code string `yaml:"code"`
	On   string `yaml:"on"`
}

// AliasDocument maps aliases to table origins. Origins may contain
// fieldpath.DatabaseToken and the {LEDGER} token.
type AliasDocument struct {
	Aliases map[string]string `yaml:"aliases"`
}

// CategoryDocument maps analysis category codes to descriptions.
type CategoryDocument struct {
	Categories map[string]string `yaml:"categories"`
}

// decodeStrict parses YAML into v, rejecting unknown fields and empty input.
func decodeStrict(raw []byte, v any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty document")
		}
		return err
	}
	return nil
}

// ParseFieldDocument parses and validates a field document.
func ParseFieldDocument(raw []byte) (*FieldDocument, error) {
	var doc FieldDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, err
	}
	for i, row := range doc.Fields {
		if strings.TrimSpace(row.Code) == "" {
			return nil, fmt.Errorf("fields[%d]: code is required", i)
		}
		if row.IsNode() && row.Ref == "" {
			return nil, fmt.Errorf("fields[%d] %q: NODE field requires ref", i, row.Code)
		}
	}
	return &doc, nil
}

// ParseJoinDocument parses and validates a join document.
func ParseJoinDocument(raw []byte) (*JoinDocument, error) {
	var doc JoinDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, err
	}
	for i, row := range doc.Joins {
		if row.Code == "" || row.On == "" {
			return nil, fmt.Errorf("joins[%d]: code and on are required", i)
		}
	}
	return &doc, nil
}

// ParseAliasDocument parses an alias document.
func ParseAliasDocument(raw []byte) (*AliasDocument, error) {
	var doc AliasDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseCategoryDocument parses an analysis category document.
func ParseCategoryDocument(raw []byte) (*CategoryDocument, error) {
	var doc CategoryDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode serializes any of the document types to YAML.
func Encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}
