// Package extract implements the per-field extraction engine: the pattern
// matcher that evaluates one rule against one document, the field extractor
// with its primary -> fallback -> AI-or-null policy, and the record extractor
// that assembles whole records with per-field provenance.
package extract

import (
	"errors"
	"fmt"

	"dex/internal/template"
)

// ErrNoMatch reports that a rule evaluated cleanly but found nothing. It is
// expected, drives fallback, and is never logged as a failure by itself.
var ErrNoMatch = errors.New("no match")

// RuleError reports a malformed rule definition (configuration bug, e.g. an
// invalid regex or a selector rule aimed at a tree-less document). It is
// surfaced to template authors and, like ErrNoMatch, drives fallback at the
// field level; the distinction matters only for diagnostics.
type RuleError struct {
	Field string
	Rule  template.ExtractionRule
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule error: field=%s kind=%s expr=%q: %v", e.Field, e.Rule.Kind, e.Rule.Expr(), e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }
