package extract

import (
	"strings"

	"dex/internal/document"
	"dex/internal/tablematch"
	"dex/internal/template"
	"dex/pkg/records"
)

// kvLabelThreshold is the minimum similarity between a scanned label and a
// field name/display name for a pair to bind to that field.
const kvLabelThreshold = 0.8

// ExtractKeyValue scans the flattened text for "Label<sep>value" lines and
// binds labels to field rules by name/display-name similarity. The separator
// defaults to ":" and comes from the template's options bag. Fields whose
// rules carry a primary/fallback rule still run through the normal policy
// first; the scanned pairs only fill fields the rules left unmatched.
func (e *Extractor) ExtractKeyValue(doc *document.Document, rules []template.FieldRule, sep string) Result {
	if sep == "" {
		sep = ":"
	}
	pairs := scanPairs(doc.Text, sep)

	rec := make(records.Record, len(rules))
	prov := make(map[string]Provenance, len(rules))
	var missing []string
	for _, fr := range rules {
		def := e.fieldDef(fr.Field)

		if !fr.Primary.IsZero() || fr.Fallback != nil {
			fres := ExtractField(doc, fr, def)
			if fres.Provenance == ProvenanceRule || fres.Provenance == ProvenanceFallback {
				rec[fr.Field] = fres.Value
				prov[fr.Field] = fres.Provenance
				continue
			}
		}

		if v, ok := lookupPair(pairs, fr.Field, def.DisplayName); ok {
			rec[fr.Field] = coerce(v, def)
			prov[fr.Field] = ProvenanceRule
			continue
		}

		rec[fr.Field] = nil
		prov[fr.Field] = ProvenanceUnmatched
		if fr.Required {
			prov[fr.Field] = ProvenanceNeedsAI
			missing = append(missing, fr.Field)
		}
	}
	return Result{Record: rec, Provenance: prov, Missing: missing}
}

// pair is one scanned label/value line.
type pair struct {
	label string // normalized
	value string
}

// scanPairs splits each line on the first separator occurrence.
func scanPairs(text, sep string) []pair {
	var out []pair
	for _, line := range strings.Split(text, "\n") {
		i := strings.Index(line, sep)
		if i <= 0 {
			continue
		}
		label := tablematch.Normalize(line[:i])
		value := strings.TrimSpace(line[i+len(sep):])
		if label == "" || value == "" {
			continue
		}
		out = append(out, pair{label: label, value: value})
	}
	return out
}

// lookupPair finds the best-scoring pair for a field; first match wins ties
// so repeated labels resolve deterministically.
func lookupPair(pairs []pair, field, display string) (string, bool) {
	names := []string{tablematch.Normalize(field)}
	if display != "" {
		names = append(names, tablematch.Normalize(display))
	}

	bestScore := 0.0
	bestVal := ""
	for _, p := range pairs {
		for _, n := range names {
			if s := tablematch.Ratio(p.label, n); s > bestScore {
				bestScore = s
				bestVal = p.value
			}
		}
	}
	if bestScore >= kvLabelThreshold {
		return bestVal, true
	}
	return "", false
}
