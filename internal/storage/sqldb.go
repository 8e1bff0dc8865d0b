package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLDialect is the small amount of behavior that differs between
// database/sql-based backends (sqlite, mssql, mysql).
type SQLDialect struct {
	// Name prefixes error messages ("sqlite", "mssql", ...).
	Name string

	// Placeholder renders the i-th (1-based) statement parameter.
	Placeholder func(i int) string

	// MissingTable reports whether err means the queried table does not
	// exist in this backend.
	MissingTable func(err error) bool
}

// SQLStore implements Store on top of database/sql. Backends wrap it with
// their driver, dialect, and DDL bootstrapper.
type SQLStore struct {
	db *sql.DB
	d  SQLDialect
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, d SQLDialect) *SQLStore {
	return &SQLStore{db: db, d: d}
}

// DB exposes the underlying handle for backend-specific setup (pragmas).
func (s *SQLStore) DB() *sql.DB { return s.db }

// Exec runs one statement and returns the affected row count.
func (s *SQLStore) Exec(ctx context.Context, query string) (int64, error) {
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, s.classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report affected rows for DDL; not an error.
		return 0, nil
	}
	return n, nil
}

// ExecAll runs the statements in one transaction; the returned count is the
// affected rows of the last statement.
func (s *SQLStore) ExecAll(ctx context.Context, queries []string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", s.d.Name, err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int64
	for _, q := range queries {
		res, err := tx.ExecContext(ctx, q)
		if err != nil {
			return 0, s.classify(err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			n = affected
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", s.d.Name, err)
	}
	return n, nil
}

// Count returns the row count of table.
func (s *SQLStore) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	if err != nil {
		return 0, s.classify(err)
	}
	return n, nil
}

// InsertRows inserts the rows inside a single transaction using a prepared
// statement. database/sql backends have no COPY-style primitive, but a
// transaction keeps performance acceptable for extraction-sized batches.
func (s *SQLStore) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: InsertRows: columns must not be empty", s.d.Name)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = s.d.Placeholder(i + 1)
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", s.d.Name, err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%s: prepare insert: %w", s.d.Name, err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("%s: InsertRows: row length %d != columns length %d", s.d.Name, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return inserted, s.classify(err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("%s: commit: %w", s.d.Name, err)
	}
	return inserted, nil
}

// Close closes the underlying handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) classify(err error) error {
	if s.d.MissingTable != nil && s.d.MissingTable(err) {
		return fmt.Errorf("%s: %w: %v", s.d.Name, ErrTableMissing, err)
	}
	return fmt.Errorf("%s: %w", s.d.Name, err)
}
