package runner

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"dex/internal/catalog"
	"dex/internal/config"
	"dex/internal/datasource/file"
	"dex/internal/document"
	"dex/internal/entity"
	"dex/internal/storage"
	"dex/internal/template"
)

// memStore collects inserted rows per table.
type memStore struct {
	mu     sync.Mutex
	rows   map[string][][]any
	cols   map[string][]string
	counts map[string]int64
}

func newMemStore() *memStore {
	return &memStore{rows: map[string][][]any{}, cols: map[string][]string{}, counts: map[string]int64{}}
}

func (m *memStore) Exec(ctx context.Context, query string) (int64, error) { return 0, nil }
func (m *memStore) ExecAll(ctx context.Context, queries []string) (int64, error) {
	return 0, nil
}
func (m *memStore) Count(ctx context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[table], nil
}
func (m *memStore) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[table] = append(m.rows[table], rows...)
	m.cols[table] = columns
	return int64(len(rows)), nil
}
func (m *memStore) Close() error { return nil }

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return dir
}

func runCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.FieldDef{
		{Name: "class", Type: catalog.TypeText, DisplayName: "CLASS"},
		{Name: "cases", Type: catalog.TypeNumber, DisplayName: "Cases"},
		{Name: "vendor", Type: catalog.TypeText},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func runRegistry(t *testing.T) *entity.Registry {
	t.Helper()
	reg, err := entity.NewRegistry([]entity.Entity{
		{Name: "tbl2", Tier: entity.TierRaw, Fields: []entity.Field{
			{Name: "class"}, {Name: "cases", Type: catalog.TypeNumber},
		}},
		{Name: "tbl3", Tier: entity.TierRaw, Fields: []entity.Field{
			{Name: "class"}, {Name: "cases", Type: catalog.TypeNumber},
		}},
		{Name: "vendors_raw", Tier: entity.TierRaw, Fields: []entity.Field{
			{Name: "vendor"},
		}},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

const tableDoc = `<html><body>
<table>
  <tr><th>CLASS</th><th>Cases</th></tr>
  <tr><td>A</td><td>10</td></tr>
  <tr><td>B</td><td>20</td></tr>
</table>
<table>
  <tr><th>CLASS</th><th>Cases</th></tr>
  <tr><td>C</td><td>30</td></tr>
</table>
<table>
  <tr><th>Winery</th><th>Bottles</th></tr>
  <tr><td>X</td><td>1</td></tr>
</table>
</body></html>`

func tableTemplate() *template.Template {
	rowFields := []template.FieldRule{
		{Field: "class", Required: true},
		{Field: "cases"},
	}
	header := []string{"CLASS", "Cases"}
	return &template.Template{
		ID:       "tri-table",
		Name:     "sequenced tables",
		Strategy: template.StrategyTable,
		Tables: []template.TablePattern{
			{Name: "current", Entity: "tbl2", Header: header, SequenceGroup: "spirits", Fields: rowFields},
			{Name: "ytd", Entity: "tbl3", Header: header, SequenceGroup: "spirits", Fields: rowFields},
		},
	}
}

func TestRun_TableStrategyEndToEnd(t *testing.T) {
	t.Parallel()

	dir := writeDocs(t, map[string]string{
		"report.html": tableDoc,
		"notes.txt":   "not a document",
	})
	store := newMemStore()
	cfg := config.Pipeline{
		Job:     "test",
		Runtime: config.RuntimeConfig{Workers: 2, BatchSize: 10},
	}

	r := New(cfg, runCatalog(t), []*template.Template{tableTemplate()}, runRegistry(t), store, file.NewDir(dir, ""), nil)
	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Documents != 1 || stats.Skipped != 1 {
		t.Fatalf("Documents = %d Skipped = %d", stats.Documents, stats.Skipped)
	}
	// Two of the three tables match the sequenced patterns; the wine table
	// has no candidate.
	if stats.TablesIdentified != 2 || stats.TablesUnidentified != 1 {
		t.Fatalf("identified = %d unidentified = %d", stats.TablesIdentified, stats.TablesUnidentified)
	}
	if stats.Records != 3 {
		t.Fatalf("Records = %d, want 3", stats.Records)
	}

	if got := len(store.rows["tbl2"]); got != 2 {
		t.Fatalf("tbl2 rows = %d, want 2", got)
	}
	if got := len(store.rows["tbl3"]); got != 1 {
		t.Fatalf("tbl3 rows = %d, want 1", got)
	}
	if stats.Inserted["tbl2"] != 2 || stats.Inserted["tbl3"] != 1 {
		t.Fatalf("Inserted = %v", stats.Inserted)
	}
	// Rows follow the entity's declared column order.
	row := store.rows["tbl2"][0]
	if row[0] != "A" || row[1] != int64(10) {
		t.Fatalf("tbl2 row = %v", row)
	}
}

func TestRun_SelectorStrategy(t *testing.T) {
	t.Parallel()

	dir := writeDocs(t, map[string]string{
		"a.html": `<html><body><span class="vendor">Acme</span></body></html>`,
		"b.html": `<html><body><span class="vendor">Zenith</span></body></html>`,
	})
	store := newMemStore()
	tpl := &template.Template{
		ID:       "vendors",
		Strategy: template.StrategySelector,
		Entity:   "vendors_raw",
		Fields: []template.FieldRule{
			{Field: "vendor", Primary: template.ExtractionRule{Kind: template.RuleSelector, Selector: ".vendor"}},
		},
	}

	r := New(config.Pipeline{Job: "test"}, runCatalog(t), []*template.Template{tpl}, runRegistry(t), store, file.NewDir(dir, "*.html"), nil)
	stats, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Documents != 2 || stats.Records != 2 {
		t.Fatalf("Documents = %d Records = %d", stats.Documents, stats.Records)
	}
	if got := len(store.rows["vendors_raw"]); got != 2 {
		t.Fatalf("vendors_raw rows = %d, want 2", got)
	}
}

func TestRun_LoadRejectsDerivedTarget(t *testing.T) {
	t.Parallel()

	reg, err := entity.NewRegistry([]entity.Entity{
		{Name: "vendors", Tier: entity.TierReference, Fields: []entity.Field{
			{Name: "vendor", Source: &entity.SourceMapping{Entity: "tbl2", Column: "vendor"}},
		}},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	dir := writeDocs(t, map[string]string{
		"a.html": `<html><body><span class="vendor">Acme</span></body></html>`,
	})
	tpl := &template.Template{
		ID:       "bad-target",
		Strategy: template.StrategySelector,
		Entity:   "vendors",
		Fields: []template.FieldRule{
			{Field: "vendor", Primary: template.ExtractionRule{Kind: template.RuleSelector, Selector: ".vendor"}},
		},
	}

	r := New(config.Pipeline{Job: "test"}, runCatalog(t), []*template.Template{tpl}, reg, newMemStore(), file.NewDir(dir, ""), nil)
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error for derived-tier load target")
	}
}

func TestTemplateFor(t *testing.T) {
	t.Parallel()

	glob := &template.Template{
		ID:       "glob",
		Strategy: template.StrategyPath,
		Options:  template.Options{"match": "nabca_*.json"},
	}
	htmlTpl := &template.Template{ID: "html", Strategy: template.StrategySelector}
	anyTpl := &template.Template{ID: "kv", Strategy: template.StrategyKeyValue}

	r := New(config.Pipeline{}, nil, []*template.Template{glob, htmlTpl, anyTpl}, nil, nil, nil, nil)

	if tpl := r.templateFor("nabca_2024_03.json", document.KindJSON); tpl == nil || tpl.ID != "glob" {
		t.Fatalf("glob match failed: %+v", tpl)
	}
	if tpl := r.templateFor("page.html", document.KindHTML); tpl == nil || tpl.ID != "html" {
		t.Fatalf("kind match failed: %+v", tpl)
	}
	// JSON without a glob match falls through to the first compatible
	// strategy; selector does not fit, keyvalue does.
	if tpl := r.templateFor("other.json", document.KindJSON); tpl == nil || tpl.ID != "kv" {
		t.Fatalf("fallback match failed: %+v", tpl)
	}
}

func TestStrategyFits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    template.Strategy
		kind document.Kind
		want bool
	}{
		{template.StrategySelector, document.KindHTML, true},
		{template.StrategySelector, document.KindJSON, false},
		{template.StrategyPath, document.KindJSON, true},
		{template.StrategyPath, document.KindCSV, false},
		{template.StrategyTable, document.KindCSV, true},
		{template.StrategyTable, document.KindTextract, true},
		{template.StrategyTable, document.KindJSON, false},
		{template.StrategyKeyValue, document.KindCSV, true},
		{template.StrategyAI, document.KindHTML, true},
	}
	for _, tt := range tests {
		if got := strategyFits(tt.s, tt.kind); got != tt.want {
			t.Fatalf("strategyFits(%s, %s) = %v, want %v", tt.s, tt.kind, got, tt.want)
		}
	}
}

var _ storage.Store = (*memStore)(nil)
