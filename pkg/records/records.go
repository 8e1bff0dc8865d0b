// Package records defines the Record type passed between the extraction,
// transformation, and loading stages. A Record is a flat field-name -> value
// map; values are whatever the extractor or coercion produced (string,
// int64, float64, bool, time.Time, or nil).
package records

// Record is one logical row of extracted data keyed by catalog field name.
type Record map[string]any

// Clone returns a shallow copy of r. Useful when a transform must not
// mutate the caller's map.
func Clone(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NonEmpty counts fields whose value is neither nil nor the empty string.
func NonEmpty(r Record) int {
	n := 0
	for _, v := range r {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		n++
	}
	return n
}

// Columns assembles an ordered row from r following cols. Missing fields
// become nil so the row stays aligned with the column list.
func Columns(r Record, cols []string) []any {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = r[c]
	}
	return row
}
