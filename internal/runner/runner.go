// Package runner orchestrates one extraction run: list documents, parse
// them, extract records by template strategy, and load raw entities into
// storage. Documents fan out across a bounded worker pool; everything inside
// a single document is sequential.
package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dex/internal/catalog"
	"dex/internal/config"
	"dex/internal/datasource"
	"dex/internal/document"
	"dex/internal/entity"
	"dex/internal/extract"
	"dex/internal/metrics"
	"dex/internal/storage"
	"dex/internal/tablematch"
	"dex/internal/template"
	"dex/pkg/records"
)

// Runner executes extraction runs. Construct with New; the zero value is not
// usable.
type Runner struct {
	cfg       config.Pipeline
	catalog   *catalog.Catalog
	templates []*template.Template
	registry  *entity.Registry
	store     storage.Store
	source    datasource.Lister
	ai        extract.AIFallback

	identifier tablematch.Identifier
}

// New assembles a runner from its collaborators. ai may be nil; fields that
// miss every rule then stay null.
func New(
	cfg config.Pipeline,
	cat *catalog.Catalog,
	templates []*template.Template,
	reg *entity.Registry,
	store storage.Store,
	source datasource.Lister,
	ai extract.AIFallback,
) *Runner {
	threshold := cfg.Matching.Threshold
	if threshold == 0 {
		threshold = tablematch.DefaultThreshold
	}
	if ai != nil {
		limit := cfg.AI.Concurrency
		if limit <= 0 {
			limit = 1
		}
		ai = &gatedAI{inner: ai, sem: make(chan struct{}, limit)}
	}
	return &Runner{
		cfg:        cfg,
		catalog:    cat,
		templates:  templates,
		registry:   reg,
		store:      store,
		source:     source,
		ai:         ai,
		identifier: tablematch.Identifier{Threshold: threshold},
	}
}

// Stats summarizes one run. Counter updates happen under the runner's
// collection mutex, so plain ints are fine.
type Stats struct {
	RunID string

	Documents    int64
	DocumentsErr int64
	Skipped      int64

	Records    int64
	RecordsErr int64
	AIUsed     int64

	TablesIdentified   int64
	TablesUnidentified int64

	// Inserted is rows written per raw entity.
	Inserted map[string]int64
}

// Run processes every document from the source and loads the extracted
// records. Document-level failures are counted and logged but do not abort
// the run; listing and storage failures do.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		RunID:    uuid.NewString(),
		Inserted: map[string]int64{},
	}
	log.Printf("run=%s job=%s starting", stats.RunID, r.cfg.Job)

	arts, err := r.source.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list documents: %w", err)
	}
	log.Printf("run=%s documents=%d", stats.RunID, len(arts))

	workers := r.cfg.Runtime.Workers
	if workers <= 0 {
		workers = 4
	}

	var (
		mu      sync.Mutex
		byEnt   = map[string][]records.Record{}
		g, gctx = errgroup.WithContext(ctx)
	)
	g.SetLimit(workers)

	for _, art := range arts {
		art := art
		g.Go(func() error {
			start := time.Now()
			out, ds, err := r.processDocument(gctx, art)
			metrics.RecordStep(r.cfg.Job, "extract", err, time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			stats.merge(ds)
			if err != nil {
				stats.DocumentsErr++
				metrics.RecordDocuments(r.cfg.Job, "failed", 1)
				log.Printf("run=%s doc=%s error=%v", stats.RunID, art.Name, err)
				return nil
			}
			if ds.skipped > 0 {
				metrics.RecordDocuments(r.cfg.Job, "skipped", 1)
				return nil
			}
			stats.Documents++
			metrics.RecordDocuments(r.cfg.Job, "ok", 1)
			for ent, recs := range out {
				byEnt[ent] = append(byEnt[ent], recs...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	if err := r.load(ctx, byEnt, stats); err != nil {
		return stats, err
	}

	log.Printf("run=%s done documents=%d failed=%d records=%d record_errors=%d ai_used=%d tables_identified=%d tables_unidentified=%d",
		stats.RunID, stats.Documents, stats.DocumentsErr, stats.Records, stats.RecordsErr,
		stats.AIUsed, stats.TablesIdentified, stats.TablesUnidentified)
	return stats, nil
}

func (s *Stats) merge(d docStats) {
	s.Records += d.records
	s.RecordsErr += d.recordsErr
	s.AIUsed += d.aiUsed
	s.TablesIdentified += d.tablesIdentified
	s.TablesUnidentified += d.tablesUnidentified
	s.Skipped += d.skipped
}

type docStats struct {
	records            int64
	recordsErr         int64
	aiUsed             int64
	tablesIdentified   int64
	tablesUnidentified int64
	skipped            int64
}

// processDocument parses one artifact and extracts its records, grouped by
// target entity.
func (r *Runner) processDocument(ctx context.Context, art datasource.Artifact) (map[string][]records.Record, docStats, error) {
	var ds docStats

	kind, ok := document.KindForName(art.Name)
	if !ok {
		ds.skipped++
		log.Printf("doc=%s skipped: unrecognized document kind", art.Name)
		return nil, ds, nil
	}

	rc, err := art.Source.Open(ctx)
	if err != nil {
		return nil, ds, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, ds, fmt.Errorf("read %s: %w", art.Name, err)
	}

	doc, err := document.Parse(kind, art.Name, data)
	if err != nil {
		return nil, ds, err
	}

	tpl := r.templateFor(art.Name, kind)
	if tpl == nil {
		ds.skipped++
		log.Printf("doc=%s skipped: no template for kind=%s", art.Name, kind)
		return nil, ds, nil
	}

	ex := &extract.Extractor{Catalog: r.catalog, AI: r.ai}
	out := map[string][]records.Record{}

	collect := func(ent string, results []extract.Result) {
		for _, res := range results {
			if res.AIUsed {
				ds.aiUsed++
			}
			if res.Failed() {
				ds.recordsErr++
				metrics.RecordRecords(r.cfg.Job, "failed", 1)
				log.Printf("doc=%s entity=%s record error=%v", art.Name, ent, res.Err)
				continue
			}
			if len(res.Record) == 0 {
				continue
			}
			ds.records++
			metrics.RecordRecords(r.cfg.Job, "extracted", 1)
			out[ent] = append(out[ent], res.Record)
		}
	}

	switch tpl.Strategy {
	case template.StrategyTable:
		assigned := tablematch.NewAssigned()
		for _, tbl := range doc.Tables {
			pattern, err := r.identifier.Identify(tbl, tpl.Tables, assigned)
			if err != nil {
				ds.tablesUnidentified++
				metrics.RecordTables(r.cfg.Job, "unidentified", 1)
				log.Printf("doc=%s table=%d unidentified header=%v", art.Name, tbl.Index, tbl.Header)
				continue
			}
			assigned.Mark(pattern)
			ds.tablesIdentified++
			metrics.RecordTables(r.cfg.Job, "identified", 1)
			collect(pattern.Entity, ex.ExtractTable(tbl, pattern.Fields))
		}

	case template.StrategyKeyValue:
		sep := tpl.Options.String("separator", ":")
		collect(tpl.Entity, []extract.Result{ex.ExtractKeyValue(doc, tpl.Fields, sep)})

	default:
		// selector, path, and ai strategies share the record extractor;
		// path templates may fan out over an array field.
		collect(tpl.Entity, ex.ExtractAll(ctx, doc, tpl.Fields))
	}

	return out, ds, nil
}

// templateFor picks the template for a document. An explicit "match" glob in
// the template options wins; otherwise the first template whose strategy can
// work on the parsed kind is used.
func (r *Runner) templateFor(name string, kind document.Kind) *template.Template {
	for _, tpl := range r.templates {
		if pat := tpl.Options.String("match", ""); pat != "" {
			if ok, _ := filepath.Match(pat, name); ok {
				return tpl
			}
		}
	}
	for _, tpl := range r.templates {
		if tpl.Options.String("match", "") != "" {
			continue
		}
		if strategyFits(tpl.Strategy, kind) {
			return tpl
		}
	}
	return nil
}

func strategyFits(s template.Strategy, kind document.Kind) bool {
	switch s {
	case template.StrategySelector:
		return kind == document.KindHTML
	case template.StrategyPath:
		return kind == document.KindJSON
	case template.StrategyTable:
		return kind == document.KindHTML || kind == document.KindCSV || kind == document.KindTextract
	case template.StrategyKeyValue, template.StrategyAI:
		return true
	}
	return false
}

// load writes the collected records into their raw entity tables, bootstrapping
// tables first when configured. Entities are loaded in name order so logs are
// stable.
func (r *Runner) load(ctx context.Context, byEnt map[string][]records.Record, stats *Stats) error {
	batch := r.cfg.Runtime.BatchSize
	if batch <= 0 {
		batch = 500
	}
	buffer := r.cfg.Runtime.ChannelBuffer
	if buffer <= 0 {
		buffer = batch
	}

	ents := make([]string, 0, len(byEnt))
	for name := range byEnt {
		ents = append(ents, name)
	}
	sort.Strings(ents)

	for _, name := range ents {
		recs := byEnt[name]
		e, ok := r.registry.Lookup(name)
		if !ok {
			return fmt.Errorf("load: template targets unknown entity %q", name)
		}
		if e.Tier != entity.TierRaw {
			return fmt.Errorf("load: entity %q is tier %s; only raw entities are loaded by extraction", name, e.Tier)
		}
		if r.cfg.Storage.DB.AutoCreateTables {
			if err := storage.EnsureEntity(ctx, r.cfg.Storage.Kind, r.store, e); err != nil {
				return err
			}
		}

		cols := e.ColumnNames()
		in := make(chan []any, buffer)
		go func() {
			defer close(in)
			for _, rec := range recs {
				select {
				case in <- records.Columns(rec, cols):
				case <-ctx.Done():
					return
				}
			}
		}()

		start := time.Now()
		n, err := storage.LoadBatches(ctx, cols, in, batch, func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			return r.store.InsertRows(ctx, name, columns, rows)
		})
		metrics.RecordStep(r.cfg.Job, "load", err, time.Since(start))
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		stats.Inserted[name] = n
		metrics.RecordRecords(r.cfg.Job, "inserted", n)
		log.Printf("load entity=%s rows=%d", name, n)
	}
	return nil
}

// gatedAI caps concurrent fallback calls across all workers.
type gatedAI struct {
	inner extract.AIFallback
	sem   chan struct{}
}

func (g *gatedAI) ExtractRecord(ctx context.Context, text string, fields []string) (records.Record, error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-g.sem }()
	return g.inner.ExtractRecord(ctx, text, fields)
}
