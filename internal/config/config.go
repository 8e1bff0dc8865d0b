// Package config defines the canonical, JSON-serializable configuration model
// for a document extraction pipeline. It is intentionally small, explicit, and
// dependency-free so that pipelines can be loaded from disk (or other sources)
// and passed through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in pipeline
//     files under configs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by the
//     standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job":       "nabca-monthly",
//	  "source":    { "kind": "file", "file": { "dir": "data/incoming" } },
//	  "catalog":   "configs/catalog.json",
//	  "templates": ["configs/templates/nabca.json"],
//	  "entities":  "configs/entities.json",
//	  "matching":  { "threshold": 0.85 },
//	  "ai":        { "enabled": true, "model": "claude-3-5-haiku-20241022" },
//	  "storage":   { "kind": "postgres", "db": { "dsn": "postgresql://..." } },
//	  "runtime":   { "workers": 4, "batch_size": 500 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline describes a full extraction run in JSON. It is the top-level
// object decoded from a pipeline file.
type Pipeline struct {
	// Job names this pipeline for logs and metrics labels.
	Job string `json:"job"`

	// Source describes where input documents come from (e.g., local directory).
	Source Source `json:"source"`

	// Catalog is the path to the field catalog definition file.
	Catalog string `json:"catalog"`

	// Templates lists paths to extraction template files, one per document
	// layout the pipeline understands.
	Templates []string `json:"templates"`

	// Entities is the path to the entity registry definition file.
	Entities string `json:"entities"`

	// Matching tunes table pattern identification.
	Matching Matching `json:"matching"`

	// AI configures the last-resort model-backed field extractor.
	AI AIConfig `json:"ai"`

	// Storage describes where extracted records are written.
	Storage Storage `json:"storage"`

	// Runtime controls concurrency and batching.
	Runtime RuntimeConfig `json:"runtime"`
}

// Matching holds table pattern identification settings.
type Matching struct {
	// Threshold is the minimum header similarity for a table to match a
	// declared pattern. Zero means the built-in default (0.85).
	Threshold float64 `json:"threshold"`
}

// AIConfig configures the model fallback. When disabled, fields that miss
// every rule stay null.
type AIConfig struct {
	Enabled bool   `json:"enabled"`
	Model   string `json:"model"`

	// APIKey is optional; the ANTHROPIC_API_KEY env var takes precedence.
	APIKey string `json:"api_key"`

	// TimeoutSeconds bounds each API call. Zero means no per-call bound.
	TimeoutSeconds int `json:"timeout_seconds"`

	// Concurrency caps in-flight API calls across all workers. Zero means 1.
	Concurrency int `json:"concurrency"`
}

// RuntimeConfig controls concurrency, batching, and channel buffer sizes.
type RuntimeConfig struct {
	// Workers is the number of documents processed concurrently.
	Workers       int `json:"workers"`
	BatchSize     int `json:"batch_size"`
	ChannelBuffer int `json:"channel_buffer"`
}

// Source identifies where documents are read from. Additional kinds can be
// added over time.
type Source struct {
	// Kind selects the source implementation: "file" or "http".
	Kind string `json:"kind"`

	// File carries options for the "file" source kind.
	File SourceFile `json:"file"`

	// HTTP carries options for the "http" source kind.
	HTTP SourceHTTP `json:"http"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	// List is the path to a text file of document URLs, one per line.
	List string `json:"list"`

	// TimeoutSeconds bounds each fetch. Zero uses the client default.
	TimeoutSeconds int `json:"timeout_seconds"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Dir is the local directory scanned for input documents.
	Dir string `json:"dir"`

	// Pattern optionally restricts files by glob (e.g. "*.html"). Empty
	// means every regular file in the directory.
	Pattern string `json:"pattern"`
}

// Storage selects the sink used to persist extracted records.
type Storage struct {
	// Kind selects the storage backend ("postgres", "sqlite", "mysql",
	// "mssql").
	Kind string `json:"kind"`

	// DB carries the backend connection settings.
	DB DBConfig `json:"db"`
}

// DBConfig configures the DB sink.
type DBConfig struct {
	// DSN is the backend connection string (e.g., postgresql://... for pgx).
	DSN string `json:"dsn"`

	// AutoCreateTables bootstraps entity tables before loading.
	AutoCreateTables bool `json:"auto_create_tables"`
}

// Load decodes a Pipeline from a JSON file.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return p, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Float returns the float value for key or def.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of strings
// (or an array of interface values containing strings). Returns nil when the
// key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive). This is useful for retrieving nested
// configuration blocks that will be unmarshaled into a typed struct by the
// caller.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null options
// object in JSON decodes to a non-nil, empty Options map. This simplifies call
// sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
