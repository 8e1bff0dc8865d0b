// Package template defines reusable extraction recipes: a strategy tag, an
// ordered list of field rules bound to catalog fields, and (for multi-table
// documents) an ordered list of table patterns. Templates are decoded from
// JSON files and validated by the linter in validate.go before use.
package template

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Strategy selects how a template extracts records from a document.
type Strategy string

const (
	// StrategySelector extracts one record per document via structural
	// selectors into the parsed tree.
	StrategySelector Strategy = "selector"
	// StrategyTable routes detected tables to target entities via table
	// patterns and emits one record per data row.
	StrategyTable Strategy = "table"
	// StrategyPath extracts via path expressions into structured documents;
	// an array-typed field fans out into one record per element.
	StrategyPath Strategy = "path"
	// StrategyKeyValue scans the flattened text for "Label: value" pairs.
	StrategyKeyValue Strategy = "keyvalue"
	// StrategyAI sends the whole document to the AI extraction service.
	StrategyAI Strategy = "ai"
)

// RuleKind discriminates the ExtractionRule variant.
type RuleKind string

const (
	RuleSelector RuleKind = "selector"
	RuleRegex    RuleKind = "regex"
	RulePath     RuleKind = "path"
)

// ExtractionRule is a tagged variant: exactly one of Selector, Pattern, or
// Path is meaningful, chosen by Kind. Matching code switches exhaustively on
// Kind; an unknown kind is a rule error, never a silent no-match.
type ExtractionRule struct {
	// Kind selects the variant ("selector", "regex", "path").
	Kind RuleKind `json:"kind"`

	// Selector is a CSS selector into the document tree (Kind == "selector").
	Selector string `json:"selector,omitempty"`

	// Pattern is a regular expression with at least one capture group,
	// applied case-insensitively and in multiline mode to the flattened
	// text (Kind == "regex").
	Pattern string `json:"pattern,omitempty"`

	// Path is a path expression into the structured representation
	// (Kind == "path").
	Path string `json:"path,omitempty"`
}

// IsZero reports whether the rule is entirely unset.
func (r ExtractionRule) IsZero() bool {
	return r.Kind == "" && r.Selector == "" && r.Pattern == "" && r.Path == ""
}

// Expr returns the rule's expression text, whatever the kind, for logs.
func (r ExtractionRule) Expr() string {
	switch r.Kind {
	case RuleSelector:
		return r.Selector
	case RuleRegex:
		return r.Pattern
	case RulePath:
		return r.Path
	}
	return ""
}

// FieldRule binds one catalog field to its extraction instructions.
type FieldRule struct {
	// Field is the canonical catalog field name; it is also the record key.
	Field string `json:"field"`

	// Primary is the rule tried first.
	Primary ExtractionRule `json:"primary"`

	// Fallback, when present, is tried after Primary misses or errors.
	Fallback *ExtractionRule `json:"fallback,omitempty"`

	// Required marks the field as mandatory; a required field that both
	// rules miss makes the record eligible for the AI fallback.
	Required bool `json:"required"`

	// Column pins the source column index for table-strategy templates.
	// Nil means "match by header", the default.
	Column *int `json:"column,omitempty"`
}

// TablePattern maps a detected table's header signature to a target entity.
type TablePattern struct {
	// Name identifies the pattern inside the template, for logs.
	Name string `json:"name"`

	// Entity is the target raw entity the matched table loads into.
	Entity string `json:"entity"`

	// Header is the expected header row, in column order.
	Header []string `json:"header"`

	// SequenceGroup, when non-empty, marks this pattern as part of a group
	// of byte-identical headers disambiguated purely by document order.
	SequenceGroup string `json:"sequence_group,omitempty"`

	// Fields are the field rules applied to each data row of the matched
	// table. Empty means "use the template-level field rules".
	Fields []FieldRule `json:"fields,omitempty"`
}

// Signature returns the canonical header signature used to detect
// byte-identical headers: cells trimmed, lowercased, joined with '|'.
func (p TablePattern) Signature() string {
	cells := make([]string, len(p.Header))
	for i, h := range p.Header {
		cells[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return strings.Join(cells, "|")
}

// Template is one reusable extraction recipe. It is created from a sample
// document but not bound to any particular source.
type Template struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Strategy Strategy `json:"strategy"`

	// Entity is the target raw entity for single-record strategies.
	// Table-strategy templates target entities via their table patterns.
	Entity string `json:"entity,omitempty"`

	// Fields are the template's field rules, in declaration order.
	Fields []FieldRule `json:"fields"`

	// Tables are the table patterns, in declaration order. Only meaningful
	// for StrategyTable.
	Tables []TablePattern `json:"tables,omitempty"`

	// Options is a free-form strategy-level options bag, e.g.
	// {"kv_separator": "="} for keyvalue templates.
	Options Options `json:"options,omitempty"`
}

// Options is a light helper over a free-form JSON object, mirroring how
// parser and transform options are carried in pipeline configs.
type Options map[string]any

// String returns the string value at key, or def when absent or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// Float returns the numeric value at key, or def when absent or not numeric.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

// Load decodes a single template from r.
func Load(r io.Reader) (*Template, error) {
	var t Template
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("template: decode: %w", err)
	}
	return &t, nil
}

// LoadFile decodes a template JSON file from disk.
func LoadFile(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("template: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// FieldNames returns the rule field names in declaration order.
func FieldNames(rules []FieldRule) []string {
	out := make([]string, len(rules))
	for i, fr := range rules {
		out[i] = fr.Field
	}
	return out
}

// RequiredFields returns the names of required fields in declaration order.
func RequiredFields(rules []FieldRule) []string {
	var out []string
	for _, fr := range rules {
		if fr.Required {
			out = append(out, fr.Field)
		}
	}
	return out
}
