package extract

import (
	"dex/internal/catalog"
	"dex/internal/document"
	"dex/internal/template"
)

// Provenance records which rule (or the AI fallback) produced a field value.
type Provenance string

const (
	// ProvenanceRule: the primary rule matched; fallback never evaluated.
	ProvenanceRule Provenance = "rule-matched"
	// ProvenanceFallback: primary missed or errored, fallback matched.
	ProvenanceFallback Provenance = "fallback-matched"
	// ProvenanceUnmatched: both rules missed on a non-required field; the
	// value is nil and extraction of the record continues.
	ProvenanceUnmatched Provenance = "unmatched"
	// ProvenanceNeedsAI: both rules missed on a required field; the record
	// is eligible for the record-level AI fallback.
	ProvenanceNeedsAI Provenance = "needs_ai_fallback"
	// ProvenanceAI: the value came from the AI extraction service.
	ProvenanceAI Provenance = "ai-matched"
)

// FieldResult is the outcome of extracting one field.
type FieldResult struct {
	Value      any
	Provenance Provenance

	// RuleErr carries the primary or fallback rule error, if any, for
	// diagnostics. A rule error never aborts the record by itself.
	RuleErr error
}

// ExtractField applies the three-tier policy for one field: try the primary
// rule, then the fallback, then signal AI eligibility (required fields) or
// settle on nil (optional fields). Cheap deterministic rules always run
// before anything network-bound; the AI decision itself is taken per record
// by the caller, never per field.
func ExtractField(doc *document.Document, fr template.FieldRule, def catalog.FieldDef) FieldResult {
	opts := MatchOptions{AllowArray: def.Type == catalog.TypeArray}

	var ruleErr error
	if !fr.Primary.IsZero() {
		v, err := Match(doc, fr.Primary, opts)
		if err == nil {
			return FieldResult{Value: coerce(v, def), Provenance: ProvenanceRule}
		}
		if _, isRule := err.(*RuleError); isRule {
			ruleErr = err
		}
	}

	if fr.Fallback != nil {
		v, err := Match(doc, *fr.Fallback, opts)
		if err == nil {
			return FieldResult{Value: coerce(v, def), Provenance: ProvenanceFallback, RuleErr: ruleErr}
		}
		if _, isRule := err.(*RuleError); isRule && ruleErr == nil {
			ruleErr = err
		}
	}

	if fr.Required {
		return FieldResult{Provenance: ProvenanceNeedsAI, RuleErr: ruleErr}
	}
	return FieldResult{Provenance: ProvenanceUnmatched, RuleErr: ruleErr}
}
