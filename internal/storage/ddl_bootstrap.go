package storage

import (
	"context"
	"fmt"
	"sync"

	"dex/internal/entity"
)

// DDLBootstrapper creates the table for one entity in a backend's dialect.
// Each backend registers its implementation at init time, keyed by storage
// kind.
type DDLBootstrapper func(ctx context.Context, store Store, e *entity.Entity) error

var ddlRegistry = struct {
	sync.RWMutex
	fns map[string]DDLBootstrapper
}{fns: map[string]DDLBootstrapper{}}

// RegisterDDL installs (or replaces) the bootstrapper for a storage kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlRegistry.Lock()
	defer ddlRegistry.Unlock()
	ddlRegistry.fns[kind] = fn
}

// EnsureEntity creates the entity's table through the bootstrapper
// registered for kind. Callers stay backend-agnostic; they hand over the
// entity and an open Store.
func EnsureEntity(ctx context.Context, kind string, store Store, e *entity.Entity) error {
	ddlRegistry.RLock()
	fn, ok := ddlRegistry.fns[kind]
	ddlRegistry.RUnlock()
	if !ok {
		return fmt.Errorf("storage: no DDL bootstrapper registered for kind=%q", kind)
	}
	return fn(ctx, store, e)
}
