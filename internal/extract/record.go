package extract

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"dex/internal/catalog"
	"dex/internal/document"
	"dex/internal/template"
	"dex/pkg/records"
)

// AIFallback is the external AI extraction collaborator. Given the
// document's text view and the names of the still-missing required fields,
// it returns a best-effort record or an explicit failure. The implementation
// is opaque; the engine never inspects how values were derived.
type AIFallback interface {
	ExtractRecord(ctx context.Context, text string, fields []string) (records.Record, error)
}

// Result is one extracted record with per-field provenance.
type Result struct {
	Record     records.Record
	Provenance map[string]Provenance

	// Missing lists required fields that ended the run without a value.
	Missing []string

	// AIUsed reports whether the record-level AI fallback was invoked.
	AIUsed bool

	// Err is set when the AI fallback failed or timed out. The record is
	// considered failed; the batch continues.
	Err error
}

// Failed reports whether the record should be dropped by the loader.
func (r Result) Failed() bool { return r.Err != nil }

// Extractor assembles records from documents using template field rules.
type Extractor struct {
	Catalog *catalog.Catalog

	// AI, when non-nil, is invoked at most once per record for the set of
	// required fields both rules missed. Per-field AI calls are not
	// supported; the record-level circuit breaker bounds cost.
	AI AIFallback
}

// fieldDef resolves a rule's catalog binding; unknown fields behave as text.
func (e *Extractor) fieldDef(name string) catalog.FieldDef {
	if e.Catalog != nil {
		if def, ok := e.Catalog.Lookup(name); ok {
			return def
		}
	}
	return catalog.FieldDef{Name: name, Type: catalog.TypeText}
}

// ExtractRecord produces one record from doc by running every field rule
// through the three-tier policy, then resolving AI-eligible fields with a
// single record-level fallback call.
func (e *Extractor) ExtractRecord(ctx context.Context, doc *document.Document, rules []template.FieldRule) Result {
	res := Result{
		Record:     make(records.Record, len(rules)),
		Provenance: make(map[string]Provenance, len(rules)),
	}

	var needAI []string
	for _, fr := range rules {
		fres := ExtractField(doc, fr, e.fieldDef(fr.Field))
		res.Record[fr.Field] = fres.Value
		res.Provenance[fr.Field] = fres.Provenance
		if fres.Provenance == ProvenanceNeedsAI {
			needAI = append(needAI, fr.Field)
		}
	}

	if len(needAI) == 0 {
		return res
	}
	if e.AI == nil {
		res.Missing = needAI
		return res
	}

	res.AIUsed = true
	aiRec, err := e.AI.ExtractRecord(ctx, doc.Text, needAI)
	if err != nil {
		res.Missing = needAI
		res.Err = fmt.Errorf("ai fallback: %w", err)
		return res
	}
	for _, name := range needAI {
		v, ok := aiRec[name]
		if !ok || v == nil {
			res.Missing = append(res.Missing, name)
			continue
		}
		res.Record[name] = coerce(v, e.fieldDef(name))
		res.Provenance[name] = ProvenanceAI
	}
	return res
}

// ExtractAll produces the record set for path-strategy templates: when a
// rule's catalog type is "array" and its path resolves to an array, one
// record is emitted per element, with the remaining fields evaluated once
// against the document root and repeated. Otherwise it emits the single
// record ExtractRecord would.
func (e *Extractor) ExtractAll(ctx context.Context, doc *document.Document, rules []template.FieldRule) []Result {
	arrayField, elems := e.findArrayField(doc, rules)
	if arrayField == "" {
		return []Result{e.ExtractRecord(ctx, doc, rules)}
	}

	base := e.ExtractRecord(ctx, doc, rules)
	out := make([]Result, 0, len(elems))
	for _, elem := range elems {
		r := Result{
			Record:     records.Clone(base.Record),
			Provenance: make(map[string]Provenance, len(base.Provenance)),
			Missing:    base.Missing,
			AIUsed:     base.AIUsed,
			Err:        base.Err,
		}
		for k, v := range base.Provenance {
			r.Provenance[k] = v
		}
		r.Record[arrayField] = elementValue(elem)
		r.Provenance[arrayField] = ProvenanceRule
		out = append(out, r)
	}
	return out
}

// findArrayField locates the first rule whose catalog type is "array" and
// whose primary rule resolves to an array on this document.
func (e *Extractor) findArrayField(doc *document.Document, rules []template.FieldRule) (string, []gjson.Result) {
	for _, fr := range rules {
		if e.fieldDef(fr.Field).Type != catalog.TypeArray {
			continue
		}
		v, err := Match(doc, fr.Primary, MatchOptions{AllowArray: true})
		if err != nil {
			continue
		}
		if elems, ok := v.([]gjson.Result); ok {
			return fr.Field, elems
		}
	}
	return "", nil
}

// elementValue flattens one array element: scalars become native values,
// objects keep their raw JSON text.
func elementValue(elem gjson.Result) any {
	return scalarValue(elem)
}
