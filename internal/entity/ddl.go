package entity

import (
	"fmt"
	"strings"

	"dex/internal/catalog"
)

// ColumnDef describes a single column in a backend-agnostic table
// definition. Name is emitted unquoted; quoting happens in backend renderers.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the table name and an ordered list of columns. Backends
// quote and adapt it to their dialect.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// TableDef maps the entity to a generic table definition using the default
// ANSI-ish type mapping. Backends may rewrite SQLType values before
// rendering (e.g., SQLite stores booleans as INTEGER).
func (e *Entity) TableDef() TableDef {
	td := TableDef{Name: e.Name}
	pk := e.PrimaryKey()
	hasPK := false
	for _, f := range e.Fields {
		td.Columns = append(td.Columns, ColumnDef{
			Name:       f.Name,
			SQLType:    sqlType(f),
			Nullable:   !f.Required,
			PrimaryKey: f.Name == pk,
		})
		if f.Name == pk {
			hasPK = true
		}
	}
	if !hasPK {
		// Synthesized surrogate key; backends rewrite the type to their
		// auto-increment flavor.
		td.Columns = append([]ColumnDef{{Name: pk, SQLType: "BIGINT", PrimaryKey: true}}, td.Columns...)
	}
	return td
}

// sqlType maps a semantic field type to a baseline SQL type. FK fields hold
// the referenced entity's primary identifier, hence BIGINT.
func sqlType(f Field) string {
	if f.Ref != "" {
		return "BIGINT"
	}
	switch f.Type {
	case catalog.TypeNumber:
		return "NUMERIC"
	case catalog.TypeDate:
		return "TIMESTAMP"
	case catalog.TypeBoolean:
		return "BOOLEAN"
	case catalog.TypeStructured, catalog.TypeArray:
		return "TEXT"
	}
	return "TEXT"
}

// BuildCreateTableSQL renders a deterministic, dialect-neutral
// CREATE TABLE IF NOT EXISTS statement:
//
//	CREATE TABLE IF NOT EXISTS <name> (
//	  <col> <type> [NOT NULL],
//	  ...
//	  [, PRIMARY KEY (<cols>)]
//	);
//
// Identifiers are emitted verbatim; backend renderers wrap this when their
// dialect needs quoting or different clauses.
func BuildCreateTableSQL(t TableDef) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, 1)
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", name)
		}
		def := "  " + c.Name + " " + c.SQLType
		if !c.Nullable && !c.PrimaryKey {
			def += " NOT NULL"
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, c.Name)
		}
	}
	if len(pks) > 0 {
		cols = append(cols, "  PRIMARY KEY ("+strings.Join(pks, ", ")+")")
	}

	return "CREATE TABLE IF NOT EXISTS " + name + " (\n" + strings.Join(cols, ",\n") + "\n);", nil
}
