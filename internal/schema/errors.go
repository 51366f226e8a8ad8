package schema

import (
	"errors"
	"fmt"
)

// ErrDocumentNotFound is returned by a Supplier when the requested document
// does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// ErrorKind categorizes schema errors.
type ErrorKind string

const (
	// KindMissing indicates a required document does not exist.
	KindMissing ErrorKind = "MISSING_DOCUMENT"

	// KindUnavailable indicates the supplier failed to deliver a document.
	KindUnavailable ErrorKind = "DOCUMENT_UNAVAILABLE"

	// KindMalformed indicates a document could not be parsed or validated.
	KindMalformed ErrorKind = "MALFORMED_DOCUMENT"

	// KindCycle indicates NODE fields that expand back into themselves.
	KindCycle ErrorKind = "NODE_CYCLE"

	// KindUnknownField indicates a field code not present in its table.
	KindUnknownField ErrorKind = "UNKNOWN_FIELD"
)

// SchemaError is a fatal metadata problem. It aborts compilation: no SQL is
// produced from a request whose schema lookups failed.
type SchemaError struct {
	Kind     ErrorKind
	Document DocumentKind
	Database string
	Name     string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	where := string(e.Document)
	if e.Database != "" {
		where += " " + e.Database
	}
	if e.Name != "" {
		where += "/" + e.Name
	}
	msg := fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, where)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsMissing returns true if err is a missing-document SchemaError.
// Uses errors.As to handle wrapped errors.
func IsMissing(err error) bool {
	return hasKind(err, KindMissing)
}

// IsMalformed returns true if err is a malformed-document SchemaError.
func IsMalformed(err error) bool {
	return hasKind(err, KindMalformed)
}

// IsUnknownField returns true if err reports an unknown field code.
func IsUnknownField(err error) bool {
	return hasKind(err, KindUnknownField)
}

// IsSchemaError returns true if err is any SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func hasKind(err error, kind ErrorKind) bool {
	var se *SchemaError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// NewUnknownFieldError reports that code is not a field of table.
func NewUnknownFieldError(db, table, code string) *SchemaError {
	return &SchemaError{
		Kind:     KindUnknownField,
		Document: DocFields,
		Database: db,
		Name:     table,
		Message:  fmt.Sprintf("field %q not found", code),
	}
}

// fetchError converts a Supplier error into a SchemaError.
func fetchError(doc DocumentKind, db, name string, err error) *SchemaError {
	if errors.Is(err, ErrDocumentNotFound) {
		return &SchemaError{Kind: KindMissing, Document: doc, Database: db, Name: name, Message: "document not found", Err: err}
	}
	return &SchemaError{Kind: KindUnavailable, Document: doc, Database: db, Name: name, Message: "fetch failed", Err: err}
}

func malformedError(doc DocumentKind, db, name string, err error) *SchemaError {
	return &SchemaError{Kind: KindMalformed, Document: doc, Database: db, Name: name, Message: "cannot parse document", Err: err}
}
