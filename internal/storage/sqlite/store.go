// Package sqlite implements a SQLite storage.Store via database/sql and the
// modernc.org/sqlite driver. It is the default backend for local runs and
// tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3

	"dex/internal/entity"
	"dex/internal/storage"
)

// Kind is the storage kind this backend registers under.
const Kind = "sqlite"

func init() {
	storage.Register(Kind, func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return New(ctx, cfg.DSN)
	})
	storage.RegisterDDL(Kind, ensureEntity)
}

var dialect = storage.SQLDialect{
	Name:        Kind,
	Placeholder: func(int) string { return "?" },
	MissingTable: func(err error) bool {
		return err != nil && strings.Contains(err.Error(), "no such table")
	},
}

// New opens a SQLite database. The DSN is passed straight to database/sql,
// e.g. "file:dex.db?cache=shared" or just "dex.db".
func New(ctx context.Context, dsn string) (*storage.SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	// Enable foreign keys by default; harmless when unsupported.
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return storage.NewSQLStore(db, dialect), nil
}

// ensureEntity rewrites the generic table definition into SQLite's type
// system (booleans and timestamps become INTEGER/TEXT, the surrogate key
// becomes INTEGER PRIMARY KEY) and applies it.
func ensureEntity(ctx context.Context, store storage.Store, e *entity.Entity) error {
	td := e.TableDef()
	for i, c := range td.Columns {
		switch c.SQLType {
		case "BOOLEAN":
			td.Columns[i].SQLType = "INTEGER" // 0/1
		case "TIMESTAMP":
			td.Columns[i].SQLType = "TEXT"
		case "NUMERIC":
			td.Columns[i].SQLType = "REAL"
		case "BIGINT":
			td.Columns[i].SQLType = "INTEGER"
		}
	}
	ddl, err := entity.BuildCreateTableSQL(td)
	if err != nil {
		return fmt.Errorf("sqlite: ddl for %s: %w", e.Name, err)
	}
	if _, err := store.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create %s: %w", e.Name, err)
	}
	return nil
}
