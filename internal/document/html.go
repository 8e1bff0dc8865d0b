package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML builds the goquery tree, a flattened text view, and the list of
// detected <table> elements in document order.
func ParseHTML(name string, data []byte) (*Document, error) {
	tree, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("document: parse html %s: %w", name, err)
	}

	doc := &Document{
		Kind: KindHTML,
		Name: name,
		Tree: tree,
		Text: flattenHTMLText(tree),
	}

	tree.Find("table").Each(func(i int, tbl *goquery.Selection) {
		t := Table{Index: i}
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var row []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.TrimSpace(cell.Text()))
			})
			if len(row) == 0 {
				return
			}
			if t.Header == nil {
				t.Header = row
			} else {
				t.Rows = append(t.Rows, row)
			}
		})
		if t.Header != nil {
			doc.Tables = append(doc.Tables, t)
		}
	})

	return doc, nil
}

// flattenHTMLText renders the body text line by line so that block elements
// become line boundaries. Regex rules rely on multiline mode, so structure
// that was vertical on the page should stay vertical in the text view.
func flattenHTMLText(tree *goquery.Document) string {
	body := tree.Find("body")
	if body.Length() == 0 {
		return CollapseWhitespace(tree.Text())
	}

	var b strings.Builder
	body.Find("h1, h2, h3, h4, h5, h6, p, li, tr, div, pre").Each(func(_ int, sel *goquery.Selection) {
		// Only leaf-most blocks; nested containers would duplicate text.
		if sel.Children().Filter("h1, h2, h3, h4, h5, h6, p, li, tr, div, pre").Length() > 0 {
			return
		}
		line := CollapseWhitespace(sel.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	})
	if b.Len() == 0 {
		return CollapseWhitespace(body.Text())
	}
	return strings.TrimRight(b.String(), "\n")
}
