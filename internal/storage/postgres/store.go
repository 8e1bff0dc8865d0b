// Package postgres implements a Postgres storage.Store using pgx v5.
// Bulk inserts go through COPY; transform loads run through a single
// transaction so replace semantics stay atomic.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dex/internal/entity"
	"dex/internal/storage"
)

// Kind is the storage kind this backend registers under.
const Kind = "postgres"

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return New(ctx, cfg.DSN)
	})
	storage.RegisterDDL(Kind, ensureEntity)
}

// Store is a Postgres-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a pgx pool for the given DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Exec runs one statement and returns the affected row count.
func (s *Store) Exec(ctx context.Context, query string) (int64, error) {
	tag, err := s.pool.Exec(ctx, query)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

// ExecAll runs the statements in one transaction; the returned count is the
// affected rows of the last statement (the INSERT..SELECT of a transform
// load).
func (s *Store) ExecAll(ctx context.Context, queries []string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int64
	for _, q := range queries {
		tag, err := tx.Exec(ctx, q)
		if err != nil {
			return 0, classify(err)
		}
		n = tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}

// Count returns the row count of table, mapping undefined_table (42P01) to
// storage.ErrTableMissing.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// InsertRows bulk-inserts via COPY.
func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return n, fmt.Errorf("postgres: copy: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return n, classify(err)
	}
	return n, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// classify maps backend errors onto the storage sentinel errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("postgres: %w: %s", storage.ErrTableMissing, pgErr.Message)
	}
	return fmt.Errorf("postgres: %w", err)
}

// ensureEntity renders and applies CREATE TABLE for the entity. The generic
// renderer's types are already Postgres-compatible; only the synthesized
// surrogate key is rewritten to an identity column.
func ensureEntity(ctx context.Context, store storage.Store, e *entity.Entity) error {
	td := e.TableDef()
	for i, c := range td.Columns {
		if c.PrimaryKey && c.SQLType == "BIGINT" && !hasField(e, c.Name) {
			td.Columns[i].SQLType = "BIGINT GENERATED ALWAYS AS IDENTITY"
		}
	}
	ddl, err := entity.BuildCreateTableSQL(td)
	if err != nil {
		return fmt.Errorf("postgres: ddl for %s: %w", e.Name, err)
	}
	if _, err := store.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create %s: %w", e.Name, err)
	}
	return nil
}

func hasField(e *entity.Entity, name string) bool {
	_, ok := e.Field(name)
	return ok
}
