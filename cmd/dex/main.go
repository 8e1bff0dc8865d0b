package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"dex/internal/ai"
	"dex/internal/catalog"
	"dex/internal/config"
	"dex/internal/datasource"
	"dex/internal/datasource/file"
	"dex/internal/datasource/httpds"
	"dex/internal/entity"
	"dex/internal/extract"
	"dex/internal/metrics"
	"dex/internal/metrics/datadog"
	"dex/internal/metrics/prompush"
	"dex/internal/runner"
	"dex/internal/storage"
	"dex/internal/template"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "dex/internal/storage/all"
)

// main is the entry point for the extraction binary. It loads the pipeline
// config, optionally initializes a metrics backend, and executes the run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		dogstatsdAddrFlg  string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&dogstatsdAddrFlg, "dogstatsd-addr", "", "DogStatsD address (overrides env DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	// Validate pipeline config.
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	setupMetrics(p.Job, metricsBackendFlg, pushGatewayURLFlg, dogstatsdAddrFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	cat, err := catalog.LoadFile(p.Catalog)
	if err != nil {
		fatalf("%v", err)
	}
	templates := make([]*template.Template, 0, len(p.Templates))
	for _, path := range p.Templates {
		tpl, err := template.LoadFile(path)
		if err != nil {
			fatalf("%v", err)
		}
		bad := false
		for _, iss := range template.Validate(tpl, cat) {
			fmt.Fprintf(os.Stderr, "%s: %s: %s: %s\n", path, iss.Severity, iss.Path, iss.Message)
			if iss.Severity == template.SeverityError {
				bad = true
			}
		}
		if bad {
			fatalf("template is invalid: %s", path)
		}
		templates = append(templates, tpl)
	}
	reg, err := entity.LoadRegistryFile(p.Entities)
	if err != nil {
		fatalf("%v", err)
	}

	store, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer store.Close()

	source, err := buildSource(p.Source)
	if err != nil {
		fatalf("%v", err)
	}

	var fallback extract.AIFallback
	if p.AI.Enabled {
		var opts []ai.Option
		if p.AI.Model != "" {
			opts = append(opts, ai.WithModel(p.AI.Model))
		}
		if p.AI.TimeoutSeconds > 0 {
			opts = append(opts, ai.WithCallTimeout(time.Duration(p.AI.TimeoutSeconds)*time.Second))
		}
		client, err := ai.New(p.AI.APIKey, opts...)
		if err != nil {
			fatalf("ai: %v", err)
		}
		fallback = client
	}

	r := runner.New(p, cat, templates, reg, store, source, fallback)
	stats, err := r.Run(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed run=%s in %s", stats.RunID, time.Since(start).Truncate(time.Millisecond))
	}
	if stats.DocumentsErr > 0 || stats.RecordsErr > 0 {
		os.Exit(1)
	}
}

// buildSource maps the source config onto a document lister.
func buildSource(s config.Source) (datasource.Lister, error) {
	switch s.Kind {
	case "file":
		return file.NewDir(s.File.Dir, s.File.Pattern), nil
	case "http":
		urls, err := file.ReadList(s.HTTP.List)
		if err != nil {
			return nil, fmt.Errorf("source: read url list: %w", err)
		}
		client := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
			InsecureSkipVerify: s.HTTP.InsecureSkipVerify,
		})
		return httpds.NewURLList(client, urls), nil
	default:
		return nil, fmt.Errorf("source: unknown kind %q", s.Kind)
	}
}

// setupMetrics decides the metrics backend: flag → env → default.
func setupMetrics(job, backendName, gwURL, ddAddr string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v backend=%v job=%v", gwURL, backendName, job)
		metrics.SetBackend(b)

	case "datadog":
		if ddAddr == "" {
			ddAddr = os.Getenv("DOGSTATSD_ADDR")
		}
		if ddAddr == "" {
			ddAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: ddAddr, Namespace: "dex."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v backend=%v job=%v", ddAddr, backendName, job)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
