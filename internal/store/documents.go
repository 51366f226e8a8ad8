package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ledgerql/internal/schema"
)

var _ schema.Supplier = (*Store)(nil)

// DocumentRef identifies a stored document. Alias documents use empty
// Database and Name; join and category documents use an empty Name.
type DocumentRef struct {
	Kind     schema.DocumentKind
	Database string
	Name     string
}

// String renders the ref as kind:db/name for logs and listings.
func (r DocumentRef) String() string {
	return fmt.Sprintf("%s:%s/%s", r.Kind, r.Database, r.Name)
}

// DocumentInfo describes a stored document without its body.
type DocumentInfo struct {
	DocumentRef
	Hash string
	Seq  int64
}

// validate parses body as the document kind so malformed documents are
// rejected at write time rather than at compile time.
func validate(kind schema.DocumentKind, body []byte) error {
	var err error
	switch kind {
	case schema.DocFields:
		_, err = schema.ParseFieldDocument(body)
	case schema.DocJoins:
		_, err = schema.ParseJoinDocument(body)
	case schema.DocAliases:
		_, err = schema.ParseAliasDocument(body)
	case schema.DocCategories:
		_, err = schema.ParseCategoryDocument(body)
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}
	return err
}

// normalize clears the key parts a document kind does not use.
func (r DocumentRef) normalize() DocumentRef {
	switch r.Kind {
	case schema.DocAliases:
		r.Database, r.Name = "", ""
	case schema.DocJoins, schema.DocCategories:
		r.Name = ""
	}
	return r
}

// PutDocument validates and stores a document, replacing any previous body
// in the same slot. It reports whether the stored content changed; writing an
// identical body is a no-op that keeps the original seq.
func (s *Store) PutDocument(ctx context.Context, ref DocumentRef, body []byte) (bool, error) {
	if err := validate(ref.Kind, body); err != nil {
		return false, fmt.Errorf("put document %s: %w", ref, err)
	}
	ref = ref.normalize()
	hash := documentHash(string(ref.Kind), ref.Database, ref.Name, body)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM documents`).Scan(&seq); err != nil {
		return false, fmt.Errorf("next document seq: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (kind, db_name, name, body, hash, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, db_name, name) DO UPDATE SET
			body = excluded.body,
			hash = excluded.hash,
			seq = excluded.seq
		WHERE documents.hash <> excluded.hash
	`, string(ref.Kind), ref.Database, ref.Name, body, hash, seq)
	if err != nil {
		return false, fmt.Errorf("put document %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put document %s: %w", ref, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	if n > 0 {
		s.logger.Debug("document stored", "ref", ref.String(), "seq", seq)
	}
	return n > 0, nil
}

// Document returns the body stored for ref, or schema.ErrDocumentNotFound.
func (s *Store) Document(ctx context.Context, ref DocumentRef) ([]byte, error) {
	ref = ref.normalize()
	var body []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM documents
		WHERE kind = ? AND db_name = ? AND name = ?
	`, string(ref.Kind), ref.Database, ref.Name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", ref, schema.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", ref, err)
	}
	return body, nil
}

// DeleteDocument removes the document for ref. Deleting a missing document
// is not an error.
func (s *Store) DeleteDocument(ctx context.Context, ref DocumentRef) error {
	ref = ref.normalize()
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE kind = ? AND db_name = ? AND name = ?
	`, string(ref.Kind), ref.Database, ref.Name)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", ref, err)
	}
	return nil
}

// ListDocuments returns every stored document ordered by kind, database and
// name.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, db_name, name, hash, seq
		FROM documents
		ORDER BY kind COLLATE BINARY ASC, db_name COLLATE BINARY ASC, name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var kind string
		if err := rows.Scan(&kind, &info.Database, &info.Name, &info.Hash, &info.Seq); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		info.Kind = schema.DocumentKind(kind)
		docs = append(docs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *Store) FieldDocument(ctx context.Context, db, origin string) ([]byte, error) {
	return s.Document(ctx, DocumentRef{Kind: schema.DocFields, Database: db, Name: origin})
}

func (s *Store) JoinDocument(ctx context.Context, db string) ([]byte, error) {
	return s.Document(ctx, DocumentRef{Kind: schema.DocJoins, Database: db})
}

func (s *Store) AliasDocument(ctx context.Context) ([]byte, error) {
	return s.Document(ctx, DocumentRef{Kind: schema.DocAliases})
}

func (s *Store) CategoryDocument(ctx context.Context, db string) ([]byte, error) {
	return s.Document(ctx, DocumentRef{Kind: schema.DocCategories, Database: db})
}
