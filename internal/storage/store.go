// Package storage contains the storage-agnostic contract the extraction and
// transform engines depend on, plus a factory through which concrete
// backends (postgres, sqlite, mssql, mysql) register themselves at init
// time. Callers import dex/internal/storage/all for the side effect of
// enabling every built-in backend and then stay backend-agnostic.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTableMissing reports that a counted or queried table does not exist in
// the backend. Readiness checking distinguishes it from an empty table
// because the remediation differs (create the table vs. run the upstream
// load first).
var ErrTableMissing = errors.New("table does not exist")

// Store is the minimal relational capability the core needs: execute a
// statement, count a table, bulk-insert extracted rows.
type Store interface {
	// Exec runs one statement (DDL, or a generated transform load) and
	// returns the affected row count where the backend reports one.
	Exec(ctx context.Context, query string) (int64, error)

	// ExecAll runs the given statements inside a single transaction.
	// Either all apply or none do; transform loads rely on this for their
	// replace semantics.
	ExecAll(ctx context.Context, queries []string) (int64, error)

	// Count returns the row count of table, or an error wrapping
	// ErrTableMissing when the table does not exist.
	Count(ctx context.Context, table string) (int64, error)

	// InsertRows bulk-inserts rows (aligned to columns order) into table
	// and returns the number of rows inserted. Raw-entity loads are
	// additive; InsertRows never truncates.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Kind selects the backend ("postgres", "sqlite", "mssql", "mysql").
	Kind string `json:"kind"`

	// DSN is the backend connection string.
	DSN string `json:"dsn"`
}

// Factory opens a Store for a Config.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a storage kind. It is
// called from backend packages' init functions.
func Register(kind string, fn Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = fn
}

// New opens a Store for cfg.Kind. An unknown kind is usually a wiring
// problem (missing blank import), so the message names the registration
// mechanism.
func New(ctx context.Context, cfg Config) (Store, error) {
	factoryMu.RLock()
	fn, ok := factories[cfg.Kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind=%q (missing import of dex/internal/storage/all?)", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// Kinds returns the registered backend kinds (unordered).
func Kinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
