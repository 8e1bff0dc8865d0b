// Package config provides configuration models and helpers for extraction
// pipelines.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "templates[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the slice is severity error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	if strings.TrimSpace(p.Catalog) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "catalog",
			Message:  "catalog path must not be empty",
		})
	}
	if len(p.Templates) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "templates",
			Message:  "at least one extraction template is required",
		})
	}
	for i, t := range p.Templates {
		if strings.TrimSpace(t) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("templates[%d]", i),
				Message:  "template path must not be empty",
			})
		}
	}
	if strings.TrimSpace(p.Entities) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "entities",
			Message:  "no entity registry configured; extracted records cannot be loaded or transformed",
		})
	}

	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateMatching(p.Matching)...)
	issues = append(issues, validateAI(p.AI)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	// Known source kinds. Unknown kinds are warnings (for forward compatibility).
	known := map[string]struct{}{
		"file": {},
		"http": {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching implementation exists", s.Kind),
		})
	}

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Dir) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.dir",
				Message:  "file source requires a non-empty directory",
			})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.List) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.list",
				Message:  "http source requires a URL list file",
			})
		}
		if s.HTTP.TimeoutSeconds < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.timeout_seconds",
				Message:  "timeout_seconds must not be negative",
			})
		}
	}

	return issues
}

// validateMatching validates table matching settings.
func validateMatching(m Matching) []Issue {
	var issues []Issue
	if m.Threshold < 0 || m.Threshold > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "matching.threshold",
			Message:  fmt.Sprintf("threshold=%v; must be between 0 and 1 (0 uses the default)", m.Threshold),
		})
	} else if m.Threshold > 0 && m.Threshold < 0.5 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "matching.threshold",
			Message:  fmt.Sprintf("threshold=%v is permissive; unrelated tables may match declared patterns", m.Threshold),
		})
	}
	return issues
}

// validateAI validates the model fallback settings.
func validateAI(a AIConfig) []Issue {
	var issues []Issue
	if !a.Enabled {
		return issues
	}
	if a.TimeoutSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ai.timeout_seconds",
			Message:  "timeout_seconds must not be negative",
		})
	}
	if a.Concurrency < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ai.concurrency",
			Message:  "concurrency must not be negative",
		})
	}
	return issues
}

// validateStorage validates storage configuration and DB settings.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}

	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations
// (negative values, zero-sized batches, etc.).
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}

	return issues
}
