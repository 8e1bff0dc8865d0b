// Package catalog provides the read-only field-definition catalog referenced
// by template field rules. Catalog entries describe a field's semantic type
// and light validation hints; they are loaded once and treated as immutable
// for the duration of an extraction run.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// FieldType is the semantic type of a catalog field.
type FieldType string

const (
	TypeText       FieldType = "text"
	TypeNumber     FieldType = "number"
	TypeDate       FieldType = "date"
	TypeBoolean    FieldType = "boolean"
	TypeStructured FieldType = "structured"
	// TypeArray marks fields whose path rule is allowed to resolve to a
	// JSON array (one record is produced per element).
	TypeArray FieldType = "array"
)

// FieldDef is one catalog entry.
type FieldDef struct {
	// Name is the canonical field name used as the record key and the
	// destination column name.
	Name string `json:"name"`

	// DisplayName is the human label, also consulted by header matching.
	DisplayName string `json:"display_name,omitempty"`

	// Type is the semantic type ("text", "number", "date", "boolean",
	// "structured", "array").
	Type FieldType `json:"type"`

	// Layout is the date layout for Type == "date" values, e.g. "2006-01-02".
	Layout string `json:"layout,omitempty"`
}

// Catalog is an immutable set of field definitions keyed by canonical name.
type Catalog struct {
	fields map[string]FieldDef
}

// New builds a Catalog from defs. Duplicate names are an error: rules bind to
// exactly one definition, so ambiguity here would silently reroute data.
func New(defs []FieldDef) (*Catalog, error) {
	m := make(map[string]FieldDef, len(defs))
	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog: field with empty name")
		}
		if _, dup := m[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate field %q", name)
		}
		if d.Type == "" {
			d.Type = TypeText
		}
		d.Name = name
		m[name] = d
	}
	return &Catalog{fields: m}, nil
}

// Load reads a JSON array of field definitions from r.
func Load(r io.Reader) (*Catalog, error) {
	var defs []FieldDef
	if err := json.NewDecoder(r).Decode(&defs); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(defs)
}

// LoadFile reads a catalog JSON file from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Lookup returns the definition for name and whether it exists.
func (c *Catalog) Lookup(name string) (FieldDef, bool) {
	d, ok := c.fields[name]
	return d, ok
}

// Names returns all field names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.fields))
	for n := range c.fields {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of definitions.
func (c *Catalog) Len() int { return len(c.fields) }
