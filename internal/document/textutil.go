package document

import "strings"

// CollapseWhitespace replaces consecutive whitespace characters with a single
// ASCII space and trims leading and trailing whitespace, except that newlines
// are preserved as line boundaries so multiline regex rules keep working.
//
// Whitespace within a line is treated as any of: space, tab, or carriage
// return. This keeps behavior predictable without pulling in unicode tables.
func CollapseWhitespace(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	inSpace := false
	pendingNL := false
	wrote := false
	for _, r := range s {
		switch r {
		case '\n':
			pendingNL = wrote
			inSpace = false
		case ' ', '\t', '\r':
			inSpace = wrote
		default:
			if pendingNL {
				b.WriteByte('\n')
				pendingNL = false
				inSpace = false
			} else if inSpace {
				b.WriteByte(' ')
				inSpace = false
			}
			b.WriteRune(r)
			wrote = true
		}
	}
	return b.String()
}

// trimCells trims every cell of a row in place and returns it.
func trimCells(row []string) []string {
	for i, c := range row {
		row[i] = strings.TrimSpace(c)
	}
	return row
}

// nonEmptyCells counts cells that contain more than whitespace or a stray
// quote artifact (Textract occasionally emits lone apostrophes).
func nonEmptyCells(row []string) int {
	n := 0
	for _, c := range row {
		c = strings.TrimSpace(c)
		if c != "" && c != "'" {
			n++
		}
	}
	return n
}
