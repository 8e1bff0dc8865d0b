// Package entity models the dynamically-defined relational tables the
// system loads into. Entities are organized in three tiers: RAW tables are
// populated directly from extraction, REFERENCE and MASTER tables are
// derived from upstream entities through field-level source mappings.
package entity

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"dex/internal/catalog"
)

// Tier is the extraction-output tier of an entity.
type Tier string

const (
	TierRaw       Tier = "RAW"
	TierReference Tier = "REFERENCE"
	TierMaster    Tier = "MASTER"
)

// Derived reports whether the tier is populated by transforms rather than
// extraction.
func (t Tier) Derived() bool { return t == TierReference || t == TierMaster }

// SourceMapping points a derived entity's field at an upstream entity column.
type SourceMapping struct {
	// Entity is the upstream entity name to read from.
	Entity string `json:"entity"`

	// Column is the column on the upstream entity.
	Column string `json:"column"`

	// JoinKey optionally names the field on THIS entity's first upstream
	// used to join the mapped entity. Empty means "equality join on the
	// upstream's primary identifier".
	JoinKey string `json:"join_key,omitempty"`
}

// Field is one column definition of an entity.
type Field struct {
	// Name is the column name.
	Name string `json:"name"`

	// Type is the semantic type ("text", "number", "date", "boolean",
	// "structured").
	Type catalog.FieldType `json:"type"`

	// Ref marks a foreign-key field: the name of the entity it references.
	// FK fields resolve by joining to that entity and selecting its primary
	// identifier.
	Ref string `json:"ref,omitempty"`

	// Required renders as NOT NULL.
	Required bool `json:"required,omitempty"`

	// Source, for derived entities, maps this field to an upstream column.
	// Fields without a mapping load as NULL/default.
	Source *SourceMapping `json:"source,omitempty"`
}

// Entity is one named table definition.
type Entity struct {
	Name   string  `json:"name"`
	Tier   Tier    `json:"tier"`
	Fields []Field `json:"fields"`

	// Key is the primary identifier column; empty means "id".
	Key string `json:"key,omitempty"`
}

// PrimaryKey returns the primary identifier column name.
func (e *Entity) PrimaryKey() string {
	if e.Key != "" {
		return e.Key
	}
	return "id"
}

// ColumnNames returns the field names in declared order.
func (e *Entity) ColumnNames() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Name
	}
	return out
}

// Field returns the named field and whether it exists.
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks structural invariants: a non-empty name, a known tier,
// unique field names, and the tier/mapping rule (raw entities must not carry
// source mappings; they are populated directly from extraction).
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entity: empty name")
	}
	switch e.Tier {
	case TierRaw, TierReference, TierMaster:
	default:
		return fmt.Errorf("entity %s: unknown tier %q", e.Name, e.Tier)
	}
	seen := map[string]bool{}
	for _, f := range e.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("entity %s: field with empty name", e.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("entity %s: duplicate field %q", e.Name, f.Name)
		}
		seen[f.Name] = true
		if e.Tier == TierRaw && f.Source != nil {
			return fmt.Errorf("entity %s: raw entity field %q carries a source mapping", e.Name, f.Name)
		}
	}
	return nil
}

// Registry is a read-only set of entity definitions keyed by name.
type Registry struct {
	byName map[string]*Entity
	order  []string
}

// NewRegistry validates and indexes the given entities.
func NewRegistry(ents []Entity) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Entity, len(ents))}
	for i := range ents {
		e := &ents[i]
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("entity: duplicate name %q", e.Name)
		}
		r.byName[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	return r, nil
}

// LoadRegistry decodes a JSON array of entities from r.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var ents []Entity
	if err := json.NewDecoder(r).Decode(&ents); err != nil {
		return nil, fmt.Errorf("entity: decode: %w", err)
	}
	return NewRegistry(ents)
}

// LoadRegistryFile decodes an entity JSON file from disk.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("entity: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// Lookup returns the named entity and whether it exists.
func (r *Registry) Lookup(name string) (*Entity, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Names returns entity names in declaration order.
func (r *Registry) Names() []string { return r.order }
