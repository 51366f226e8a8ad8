package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Compilation is one entry of the compilation log: a formula, the parameter
// values it was compiled with and the SQL it produced.
type Compilation struct {
	ID        string
	RequestID string
	Formula   string
	Params    []string
	Database  string
	Table     string
	SQL       string
	Seq       int64
}

// RecordCompilation appends c to the log. ID and Seq are assigned by the
// store. Recording content that is already logged is a no-op: the existing
// ID is returned with inserted=false.
func (s *Store) RecordCompilation(ctx context.Context, c Compilation) (id string, inserted bool, err error) {
	id, err = CompilationID(c)
	if err != nil {
		return "", false, err
	}
	params, err := marshalParams(c.Params)
	if err != nil {
		return "", false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations`).Scan(&seq); err != nil {
		return "", false, fmt.Errorf("next compilation seq: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO compilations (id, request_id, formula, params, db_name, table_name, sql_text, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, c.RequestID, c.Formula, params, c.Database, c.Table, c.SQL, seq)
	if err != nil {
		return "", false, fmt.Errorf("insert compilation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("insert compilation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("compilation recorded", "id", id, "inserted", n > 0)
	return id, n > 0, nil
}

// Compilations returns the most recent limit entries in seq order, oldest
// first. A limit <= 0 returns the whole log.
func (s *Store) Compilations(ctx context.Context, limit int) ([]Compilation, error) {
	query := `
		SELECT id, request_id, formula, params, db_name, table_name, sql_text, seq
		FROM (
			SELECT * FROM compilations
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()
	return scanCompilations(rows)
}

// CompilationsForRequest returns the log entries written for requestID.
func (s *Store) CompilationsForRequest(ctx context.Context, requestID string) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, formula, params, db_name, table_name, sql_text, seq
		FROM compilations
		WHERE request_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()
	return scanCompilations(rows)
}

func scanCompilations(rows *sql.Rows) ([]Compilation, error) {
	var out []Compilation
	for rows.Next() {
		var c Compilation
		var params string
		if err := rows.Scan(&c.ID, &c.RequestID, &c.Formula, &params, &c.Database, &c.Table, &c.SQL, &c.Seq); err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		var err error
		if c.Params, err = unmarshalParams(params); err != nil {
			return nil, fmt.Errorf("compilation %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return out, nil
}
