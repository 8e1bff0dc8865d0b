package extract

import (
	"dex/internal/document"
	"dex/internal/tablematch"
	"dex/internal/template"
	"dex/pkg/records"
)

// headerFieldThreshold is the minimum similarity between a header cell and a
// field name/display name for a column to bind to that field.
const headerFieldThreshold = 0.5

// ExtractTable emits one record per data row of an identified table. Columns
// bind to fields by, in order of preference: an explicit column index on the
// rule, header-cell similarity, or pure position when the header is unusable
// (all cells empty, or duplicated labels) and the column count lines up.
func (e *Extractor) ExtractTable(table document.Table, rules []template.FieldRule) []Result {
	mapping := e.columnMapping(table.Header, rules)

	out := make([]Result, 0, len(table.Rows))
	for _, row := range table.Rows {
		rec := make(records.Record, len(rules))
		prov := make(map[string]Provenance, len(rules))
		var missing []string
		for _, fr := range rules {
			col, ok := mapping[fr.Field]
			if ok && col < len(row) && row[col] != "" {
				rec[fr.Field] = coerce(row[col], e.fieldDef(fr.Field))
				prov[fr.Field] = ProvenanceRule
				continue
			}
			rec[fr.Field] = nil
			prov[fr.Field] = ProvenanceUnmatched
			if fr.Required {
				missing = append(missing, fr.Field)
			}
		}
		out = append(out, Result{Record: rec, Provenance: prov, Missing: missing})
	}
	return out
}

// columnMapping resolves each rule's source column index.
func (e *Extractor) columnMapping(header []string, rules []template.FieldRule) map[string]int {
	mapping := make(map[string]int, len(rules))

	// Explicit indexes always win.
	unresolved := make([]template.FieldRule, 0, len(rules))
	for _, fr := range rules {
		if fr.Column != nil {
			mapping[fr.Field] = *fr.Column
			continue
		}
		unresolved = append(unresolved, fr)
	}
	if len(unresolved) == 0 {
		return mapping
	}

	if headerUnusable(header) {
		// Positional fallback: duplicate or empty headers carry no signal,
		// so columns map to fields by declaration order when counts align.
		if len(rules) == len(header) {
			for i, fr := range rules {
				if fr.Column == nil {
					mapping[fr.Field] = i
				}
			}
		}
		return mapping
	}

	taken := make(map[int]bool, len(mapping))
	for _, col := range mapping {
		taken[col] = true
	}
	for _, fr := range unresolved {
		def := e.fieldDef(fr.Field)
		best, bestScore := -1, 0.0
		for col, cell := range header {
			if taken[col] || cell == "" {
				continue
			}
			key := tablematch.Normalize(cell)
			score := tablematch.Ratio(key, tablematch.Normalize(fr.Field))
			if def.DisplayName != "" {
				if s := tablematch.Ratio(key, tablematch.Normalize(def.DisplayName)); s > score {
					score = s
				}
			}
			if score > bestScore {
				bestScore = score
				best = col
			}
		}
		if best >= 0 && bestScore > headerFieldThreshold {
			mapping[fr.Field] = best
			taken[best] = true
		}
	}
	return mapping
}

// headerUnusable reports whether the header carries no mappable signal:
// every cell empty, or at least one duplicated non-empty label.
func headerUnusable(header []string) bool {
	seen := make(map[string]bool, len(header))
	any := false
	for _, h := range header {
		key := tablematch.Normalize(h)
		if key == "" {
			continue
		}
		any = true
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return !any
}
