package transform

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"dex/internal/entity"
	"dex/internal/storage"
)

// ExecError wraps a backend failure during a transform load with the
// statement that triggered it, so logs show the exact query without callers
// having to regenerate the plan.
type ExecError struct {
	Entity string
	Query  string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("transform %s: execute: %v\nquery:\n%s", e.Entity, e.Err, e.Query)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Executor runs derived-entity loads against a store.
//
// Loads for the same entity are serialized with a per-entity lock: the script
// deletes then reinserts, and two concurrent replacements of the same table
// would interleave destructively. Loads for different entities proceed in
// parallel.
type Executor struct {
	Store    storage.Store
	Registry *entity.Registry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewExecutor(store storage.Store, reg *entity.Registry) *Executor {
	return &Executor{
		Store:    store,
		Registry: reg,
		locks:    map[string]*sync.Mutex{},
	}
}

func (x *Executor) lock(name string) *sync.Mutex {
	x.mu.Lock()
	defer x.mu.Unlock()
	l, ok := x.locks[name]
	if !ok {
		l = &sync.Mutex{}
		x.locks[name] = l
	}
	return l
}

// Refresh replaces the contents of one derived entity from its upstreams.
// It checks readiness first and returns *NotReadyError without touching the
// target when any dependency lacks data. On success it returns the number of
// rows now in the target table.
func (x *Executor) Refresh(ctx context.Context, name string) (int64, error) {
	e, ok := x.Registry.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("transform: unknown entity %q", name)
	}
	if !e.Tier.Derived() {
		return 0, fmt.Errorf("transform %s: tier %s is loaded by extraction, not transformed", e.Name, e.Tier)
	}

	l := x.lock(e.Name)
	l.Lock()
	defer l.Unlock()

	ready, statuses, err := Checker{Store: x.Store}.IsReady(ctx, e)
	if err != nil {
		return 0, err
	}
	if !ready {
		return 0, &NotReadyError{Entity: e.Name, Statuses: statuses}
	}

	plan, err := Generate(e, x.Registry)
	if err != nil {
		return 0, err
	}
	log.Printf("transform: entity=%s fingerprint=%016x deps=%d", e.Name, plan.Fingerprint, len(statuses))

	if _, err := x.Store.ExecAll(ctx, plan.Statements); err != nil {
		return 0, &ExecError{Entity: e.Name, Query: plan.SQL(), Err: err}
	}
	n, err := x.Store.Count(ctx, e.Name)
	if err != nil {
		return 0, fmt.Errorf("transform %s: count after load: %w", e.Name, err)
	}
	log.Printf("transform: entity=%s loaded rows=%d", e.Name, n)
	return n, nil
}

// RefreshAll refreshes every derived entity in the registry, reference tier
// before master tier so dimension keys exist when facts join to them.
// Entities that are not ready are skipped with a log line; hard failures
// abort.
func (x *Executor) RefreshAll(ctx context.Context) (map[string]int64, error) {
	loaded := map[string]int64{}
	for _, tier := range []entity.Tier{entity.TierReference, entity.TierMaster} {
		for _, name := range x.Registry.Names() {
			e, _ := x.Registry.Lookup(name)
			if e.Tier != tier {
				continue
			}
			n, err := x.Refresh(ctx, name)
			if err != nil {
				var nr *NotReadyError
				if errors.As(err, &nr) {
					log.Printf("transform: skip entity=%s reason=%v", name, nr)
					continue
				}
				return loaded, err
			}
			loaded[name] = n
		}
	}
	return loaded, nil
}
