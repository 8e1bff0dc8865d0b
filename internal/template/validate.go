// Package template: static validation / linting for Template values.
//
// Validate performs author-time checks over a decoded Template and returns a
// list of issues (errors and warnings) the CLI can surface before any
// document is processed. Malformed rules are caught here rather than at
// extraction time wherever possible.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"dex/internal/catalog"
)

// IssueSeverity represents the severity of a template issue.
type IssueSeverity string

const (
	// SeverityError indicates an issue that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates an issue surfaced to template authors that
	// does not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Template.
//
// Path is a dotted path into the template (e.g. "fields[2].primary",
// "tables[1].header"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where convenient.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var knownStrategies = map[Strategy]bool{
	StrategySelector: true,
	StrategyTable:    true,
	StrategyPath:     true,
	StrategyKeyValue: true,
	StrategyAI:       true,
}

// Validate lints t against cat. It does not mutate t. The catalog may be nil
// when binding checks are not wanted (e.g. in authoring tools that lint
// structure only).
func Validate(t *Template, cat *catalog.Catalog) []Issue {
	var issues []Issue

	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(t.Name) == "" {
		warnf("name", "template has no name")
	}
	if !knownStrategies[t.Strategy] {
		errf("strategy", "unknown strategy %q", t.Strategy)
	}

	switch t.Strategy {
	case StrategyTable:
		if len(t.Tables) == 0 {
			errf("tables", "table strategy requires at least one table pattern")
		}
		if t.Entity != "" {
			warnf("entity", "template-level entity is ignored for table strategy")
		}
	case StrategyAI:
		if len(t.Fields) == 0 {
			errf("fields", "ai strategy requires field rules to name the fields to extract")
		}
	default:
		if len(t.Fields) == 0 {
			errf("fields", "at least one field rule required")
		}
		if strings.TrimSpace(t.Entity) == "" {
			errf("entity", "target entity required for %s strategy", t.Strategy)
		}
	}

	issues = append(issues, lintFieldRules("fields", t.Fields, cat)...)

	// Table patterns: entity present, non-empty header, and the
	// identical-signature invariant: byte-identical headers must share the
	// same non-empty sequence group.
	bySig := map[string][]int{}
	for i, p := range t.Tables {
		path := fmt.Sprintf("tables[%d]", i)
		if strings.TrimSpace(p.Entity) == "" {
			errf(path+".entity", "table pattern needs a target entity")
		}
		if len(p.Header) == 0 {
			errf(path+".header", "table pattern needs an expected header row")
		}
		issues = append(issues, lintFieldRules(path+".fields", p.Fields, cat)...)
		bySig[p.Signature()] = append(bySig[p.Signature()], i)
	}
	for sig, idxs := range bySig {
		if len(idxs) < 2 {
			continue
		}
		groups := map[string]bool{}
		for _, i := range idxs {
			groups[t.Tables[i].SequenceGroup] = true
		}
		if len(groups) != 1 || groups[""] {
			errf("tables", "patterns %v share header signature %q but not a common sequence_group", idxs, sig)
		}
	}

	return issues
}

// lintFieldRules checks one list of field rules under the given path prefix.
func lintFieldRules(prefix string, rules []FieldRule, cat *catalog.Catalog) []Issue {
	var issues []Issue
	errf := func(path, format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}

	seen := map[string]bool{}
	for i, fr := range rules {
		path := fmt.Sprintf("%s[%d]", prefix, i)
		if strings.TrimSpace(fr.Field) == "" {
			errf(path+".field", "field rule needs a catalog field name")
			continue
		}
		if seen[fr.Field] {
			errf(path+".field", "duplicate rule for field %q; each field binds at most one primary rule", fr.Field)
		}
		seen[fr.Field] = true

		if cat != nil {
			if _, ok := cat.Lookup(fr.Field); !ok {
				errf(path+".field", "field %q not present in catalog", fr.Field)
			}
		}

		if !fr.Primary.IsZero() {
			issues = append(issues, lintRule(path+".primary", fr.Primary)...)
		}
		if fr.Fallback != nil {
			issues = append(issues, lintRule(path+".fallback", *fr.Fallback)...)
		}
	}
	return issues
}

// lintRule checks a single extraction rule for author-time errors.
func lintRule(path string, r ExtractionRule) []Issue {
	var issues []Issue
	errf := func(format string, args ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, args...)})
	}

	switch r.Kind {
	case RuleSelector:
		if strings.TrimSpace(r.Selector) == "" {
			errf("selector rule has empty selector")
		}
	case RuleRegex:
		if r.Pattern == "" {
			errf("regex rule has empty pattern")
			break
		}
		re, err := regexp.Compile("(?im)" + r.Pattern)
		if err != nil {
			errf("invalid regex: %v", err)
			break
		}
		if re.NumSubexp() < 1 {
			errf("regex pattern needs at least one capture group")
		}
	case RulePath:
		if strings.TrimSpace(r.Path) == "" {
			errf("path rule has empty path")
		}
	default:
		errf("unknown rule kind %q", r.Kind)
	}
	return issues
}
