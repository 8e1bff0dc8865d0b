// Package mysql implements a MySQL storage.Store via database/sql and the
// go-sql-driver/mysql driver.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"dex/internal/entity"
	"dex/internal/storage"
)

// Kind is the storage kind this backend registers under.
const Kind = "mysql"

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
		var myErr *mysql.MySQLError
		// 1146: ER_NO_SUCH_TABLE
		return errors.As(err, &myErr) && myErr.Number == 1146
	},
}

// New opens a MySQL connection for the given DSN
// (e.g. "user:pass@tcp(host:3306)/db?parseTime=true").
func New(ctx context.Context, dsn string) (*storage.SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return storage.NewSQLStore(db, dialect), nil
}

// ensureEntity adapts the generic table definition to MySQL (NUMERIC stays,
// TIMESTAMP becomes DATETIME, the surrogate key becomes AUTO_INCREMENT) and
// applies it.
func ensureEntity(ctx context.Context, store storage.Store, e *entity.Entity) error {
	td := e.TableDef()
	for i, c := range td.Columns {
		switch {
		case c.SQLType == "TIMESTAMP":
			td.Columns[i].SQLType = "DATETIME"
		case c.SQLType == "TEXT" && c.PrimaryKey:
			// TEXT cannot be a MySQL primary key without a length.
			td.Columns[i].SQLType = "VARCHAR(255)"
		case c.PrimaryKey && c.SQLType == "BIGINT" && !fieldDeclared(e, c.Name):
			td.Columns[i].SQLType = "BIGINT AUTO_INCREMENT"
		}
	}
	ddl, err := entity.BuildCreateTableSQL(td)
	if err != nil {
		return fmt.Errorf("mysql: ddl for %s: %w", e.Name, err)
	}
	if _, err := store.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("mysql: create %s: %w", e.Name, err)
	}
	return nil
}

func fieldDeclared(e *entity.Entity, name string) bool {
	_, ok := e.Field(name)
	return ok
}
