// Command transform refreshes derived (reference/master tier) entities from
// loaded raw data. It shares the pipeline config with the extraction binary
// and can refresh one entity or all derived entities in tier order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"dex/internal/config"
	"dex/internal/entity"
	"dex/internal/storage"
	"dex/internal/transform"

	_ "dex/internal/storage/all"
)

func main() {
	var (
		cfgPath string
		entName string
		dryRun  bool
	)
	flag.StringVar(&cfgPath, "config", "configs/pipeline.json", "pipeline config JSON path")
	flag.StringVar(&entName, "entity", "", "derived entity to refresh (empty refreshes all, reference tier first)")
	flag.BoolVar(&dryRun, "dry-run", false, "print the generated load statements without executing")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if issues := config.ValidatePipeline(p); config.HasErrors(issues) {
		for _, iss := range issues {
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		}
		os.Exit(1)
	}

	reg, err := entity.LoadRegistryFile(p.Entities)
	if err != nil {
		fatalf("%v", err)
	}

	if dryRun {
		if err := printPlans(reg, entName); err != nil {
			fatalf("%v", err)
		}
		return
	}

	ctx := context.Background()
	store, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer store.Close()

	if p.Storage.DB.AutoCreateTables {
		for _, name := range reg.Names() {
			e, _ := reg.Lookup(name)
			if !e.Tier.Derived() {
				continue
			}
			if err := storage.EnsureEntity(ctx, p.Storage.Kind, store, e); err != nil {
				fatalf("bootstrap %s: %v", name, err)
			}
		}
	}

	x := transform.NewExecutor(store, reg)
	start := time.Now()

	if entName != "" {
		n, err := x.Refresh(ctx, entName)
		if err != nil {
			var nr *transform.NotReadyError
			if errors.As(err, &nr) {
				log.Printf("%v", nr)
				os.Exit(2)
			}
			log.Fatalf("%v", err)
		}
		log.Printf("entity=%s rows=%d", entName, n)
	} else {
		loaded, err := x.RefreshAll(ctx)
		if err != nil {
			log.Fatalf("%v", err)
		}
		for name, n := range loaded {
			log.Printf("entity=%s rows=%d", name, n)
		}
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func printPlans(reg *entity.Registry, entName string) error {
	names := reg.Names()
	if entName != "" {
		names = []string{entName}
	}
	for _, name := range names {
		e, ok := reg.Lookup(name)
		if !ok {
			return fmt.Errorf("unknown entity %q", name)
		}
		if !e.Tier.Derived() {
			continue
		}
		plan, err := transform.Generate(e, reg)
		if err != nil {
			return err
		}
		fmt.Printf("-- %s (fingerprint %016x)\n%s\n\n", plan.Entity, plan.Fingerprint, plan.SQL())
	}
	return nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
