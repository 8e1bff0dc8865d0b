package document

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseTextract reconstructs tables from Textract block JSON, the form PDF
// artifacts arrive in after the external OCR step. TABLE blocks reference
// CELL blocks through CHILD relationships, and cells reference WORD blocks;
// cell coordinates are 1-based RowIndex/ColumnIndex.
//
// The header row of each grid is detected as the row with the most non-empty
// cells among the first five rows; anything above it is page furniture and
// is dropped, anything below it is data.
func ParseTextract(name string, data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("document: parse textract %s: invalid JSON", name)
	}
	root := gjson.ParseBytes(data)
	blocks := root.Get("Blocks")
	if !blocks.IsArray() {
		return nil, fmt.Errorf("document: parse textract %s: missing Blocks array", name)
	}

	byID := make(map[string]gjson.Result)
	var lines []string
	blocks.ForEach(func(_, b gjson.Result) bool {
		if id := b.Get("Id").String(); id != "" {
			byID[id] = b
		}
		if b.Get("BlockType").String() == "LINE" {
			if txt := strings.TrimSpace(b.Get("Text").String()); txt != "" {
				lines = append(lines, txt)
			}
		}
		return true
	})

	doc := &Document{
		Kind: KindTextract,
		Name: name,
		Text: strings.Join(lines, "\n"),
		Root: root,
	}

	tableIdx := 0
	blocks.ForEach(func(_, b gjson.Result) bool {
		if b.Get("BlockType").String() != "TABLE" {
			return true
		}
		grid := tableGrid(b, byID)
		if len(grid) == 0 {
			return true
		}
		headerIdx := detectHeaderRow(grid)
		t := Table{
			Index:  tableIdx,
			Header: grid[headerIdx],
			Rows:   grid[headerIdx+1:],
		}
		doc.Tables = append(doc.Tables, t)
		tableIdx++
		return true
	})

	return doc, nil
}

// tableGrid assembles the cell grid of one TABLE block. Grid size is taken
// from the maximum cell coordinates, since RowSpan/ColumnSpan on the table
// block itself are unreliable in practice.
func tableGrid(table gjson.Result, byID map[string]gjson.Result) [][]string {
	cells := childBlocks(table, byID, "CELL")
	if len(cells) == 0 {
		return nil
	}

	maxRow, maxCol := 0, 0
	for _, c := range cells {
		if r := int(c.Get("RowIndex").Int()); r > maxRow {
			maxRow = r
		}
		if col := int(c.Get("ColumnIndex").Int()); col > maxCol {
			maxCol = col
		}
	}
	if maxRow == 0 || maxCol == 0 {
		return nil
	}

	grid := make([][]string, maxRow)
	for i := range grid {
		grid[i] = make([]string, maxCol)
	}
	for _, c := range cells {
		row := int(c.Get("RowIndex").Int()) - 1
		col := int(c.Get("ColumnIndex").Int()) - 1
		if row < 0 || col < 0 {
			continue
		}
		var words []string
		for _, w := range childBlocks(c, byID, "WORD") {
			if txt := w.Get("Text").String(); txt != "" {
				words = append(words, txt)
			}
		}
		grid[row][col] = strings.TrimSpace(strings.Join(words, " "))
	}
	return grid
}

// childBlocks resolves a block's CHILD relationship ids to blocks of the
// wanted type, preserving relationship order.
func childBlocks(b gjson.Result, byID map[string]gjson.Result, wantType string) []gjson.Result {
	var out []gjson.Result
	b.Get("Relationships").ForEach(func(_, rel gjson.Result) bool {
		if rel.Get("Type").String() != "CHILD" {
			return true
		}
		rel.Get("Ids").ForEach(func(_, id gjson.Result) bool {
			child, ok := byID[id.String()]
			if ok && child.Get("BlockType").String() == wantType {
				out = append(out, child)
			}
			return true
		})
		return true
	})
	return out
}

// detectHeaderRow returns the index of the row with the most non-empty cells
// among the first five rows.
func detectHeaderRow(grid [][]string) int {
	best, bestCount := 0, 0
	limit := len(grid)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		if n := nonEmptyCells(grid[i]); n > bestCount {
			bestCount = n
			best = i
		}
	}
	return best
}
