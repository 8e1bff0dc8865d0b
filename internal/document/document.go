// Package document turns raw artifact bytes into the three views the
// extraction engine works with: a structural tree for selector rules, a
// flattened text view for regex rules, and a structured root for path rules.
// Table-bearing kinds additionally expose the detected tables in document
// order, which the table-pattern identifier depends on.
package document

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Kind declares how the raw bytes should be parsed.
type Kind string

const (
	KindHTML Kind = "html"
	KindJSON Kind = "json"
	KindCSV  Kind = "csv"
	// KindTextract is pre-extracted PDF content in Textract block JSON, the
	// form PDF artifacts arrive in after the external OCR step.
	KindTextract Kind = "textract"
)

// Table is one detected table: the header row plus the data rows below it,
// all as trimmed cell strings. Index is the table's position in document
// order, which drives sequential disambiguation.
type Table struct {
	Index  int
	Header []string
	Rows   [][]string
}

// Document is a parsed artifact. Depending on Kind some views are absent:
// only HTML has a Tree, only JSON and Textract have a structured Root.
type Document struct {
	Kind Kind

	// Name is the source artifact name, carried for logs and provenance.
	Name string

	// Tree is the structural representation for selector rules (HTML only).
	Tree *goquery.Document

	// Text is the flattened text view for regex rules. Always present.
	Text string

	// Root is the structured representation for path rules (JSON, Textract).
	Root gjson.Result

	// Tables are the detected tables in document order.
	Tables []Table
}

// HasTree reports whether selector rules can run against this document.
func (d *Document) HasTree() bool { return d.Tree != nil }

// HasRoot reports whether path rules can run against this document.
func (d *Document) HasRoot() bool { return d.Root.Exists() }

// Parse dispatches on kind. Unknown kinds are an error, not a silent empty
// document.
func Parse(kind Kind, name string, data []byte) (*Document, error) {
	switch kind {
	case KindHTML:
		return ParseHTML(name, data)
	case KindJSON:
		return ParseJSON(name, data)
	case KindCSV:
		return ParseCSV(name, data)
	case KindTextract:
		return ParseTextract(name, data)
	}
	return nil, fmt.Errorf("document: unknown kind %q", kind)
}

// KindForName guesses a document kind from a file name suffix. Returns false
// when the suffix is not recognized.
func KindForName(name string) (Kind, bool) {
	switch {
	case hasSuffixFold(name, ".html"), hasSuffixFold(name, ".htm"):
		return KindHTML, true
	case hasSuffixFold(name, ".textract.json"), hasSuffixFold(name, ".textract"):
		return KindTextract, true
	case hasSuffixFold(name, ".json"):
		return KindJSON, true
	case hasSuffixFold(name, ".csv"):
		return KindCSV, true
	}
	return "", false
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := 0; i < len(suffix); i++ {
		a, b := tail[i], suffix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
