// Package tablematch assigns detected tables to template table patterns.
// Its scoring compares normalized header rows; its identifier implements the
// sequential disambiguation that routes several byte-identical headers to
// distinct target entities in document order.
package tablematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizer folds away diacritics and compatibility forms so header cells
// compare by content, not by OCR/encoding accidents.
var normalizer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes one header cell: diacritics folded, lowercased,
// inner whitespace collapsed to single spaces, trimmed.
func Normalize(s string) string {
	if folded, _, err := transform.String(normalizer, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// HeaderKey joins a header row's normalized cells. Similarity scoring and
// exact-match detection both operate on this joined form.
func HeaderKey(header []string) string {
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = Normalize(h)
	}
	return strings.Join(cells, "|")
}

// Ratio returns a normalized similarity in [0,1] between a and b:
// 1 - levenshtein(a,b)/max(len(a),len(b)), with 1.0 for two empty strings.
// It is the tunable metric behind header acceptance; the threshold lives in
// configuration, not here.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
