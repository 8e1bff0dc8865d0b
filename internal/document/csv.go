package document

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// ParseCSV reads the payload as one table whose header is the first row.
// The reader is configured tolerantly: variable field counts, lazy quotes,
// and leading-space trimming, since real-world exports are rarely clean.
func ParseCSV(name string, data []byte) (*Document, error) {
	r := csv.NewReader(bytes.NewReader(stripBOM(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var t Table
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document: parse csv %s: %w", name, err)
		}
		row = trimCells(append([]string(nil), row...))
		if t.Header == nil {
			t.Header = row
			continue
		}
		t.Rows = append(t.Rows, row)
	}

	doc := &Document{
		Kind: KindCSV,
		Name: name,
		Text: string(data),
	}
	if t.Header != nil {
		doc.Tables = []Table{t}
	}
	return doc, nil
}

// stripBOM drops a UTF-8 byte order mark, which otherwise ends up glued to
// the first header cell.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
