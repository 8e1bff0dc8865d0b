// Package transform computes derived (reference/master tier) entities from
// raw entities: it derives upstream dependencies from field-level source
// mappings, checks that each dependency has data, generates the join-based
// load statement, and executes it with replace semantics.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dex/internal/entity"
	"dex/internal/storage"
)

// DependencyState classifies one upstream dependency's readiness.
type DependencyState string

const (
	// StateReady: the backing table exists and has at least one row.
	StateReady DependencyState = "ready"
	// StateNoRows: the backing table exists but is empty; run the upstream
	// load first.
	StateNoRows DependencyState = "no_rows"
	// StateMissingTable: the backing table does not exist; create it
	// (bootstrap the entity) before loading.
	StateMissingTable DependencyState = "missing_table"
)

// DependencyStatus is the readiness of one upstream entity.
type DependencyStatus struct {
	Entity string
	State  DependencyState
	Rows   int64

	// Err carries the backend error for states other than ready/no_rows.
	Err error
}

// NotReadyError aborts a transform before any write when preconditions are
// unmet. It is fully recoverable by running upstream loads first.
type NotReadyError struct {
	Entity   string
	Statuses []DependencyStatus
}

func (e *NotReadyError) Error() string {
	var parts []string
	for _, s := range e.Statuses {
		if s.State != StateReady {
			parts = append(parts, fmt.Sprintf("%s=%s", s.Entity, s.State))
		}
	}
	return fmt.Sprintf("transform %s: dependencies not ready: %s", e.Entity, strings.Join(parts, " "))
}

// Dependencies returns the distinct upstream entity names referenced by the
// entity's field source mappings, in first-reference order, excluding
// self-references. Raw entities have no dependencies by construction.
func Dependencies(e *entity.Entity) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range e.Fields {
		if f.Source == nil {
			continue
		}
		name := f.Source.Entity
		if name == "" || name == e.Name || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Counter is the slice of the storage contract readiness needs. It is
// satisfied by storage.Store; tests substitute a fake.
type Counter interface {
	Count(ctx context.Context, table string) (int64, error)
}

// Checker evaluates transform readiness. The check is re-evaluated on every
// call: upstream state changes outside this component's control, so there is
// nothing safe to cache.
type Checker struct {
	Store Counter
}

// IsReady reports whether every upstream dependency of e has data, along
// with a per-dependency status usable for remediation messages.
func (c Checker) IsReady(ctx context.Context, e *entity.Entity) (bool, []DependencyStatus, error) {
	deps := Dependencies(e)
	statuses := make([]DependencyStatus, 0, len(deps))
	ready := true
	for _, dep := range deps {
		st := DependencyStatus{Entity: dep}
		n, err := c.Store.Count(ctx, dep)
		switch {
		case err == nil && n > 0:
			st.State = StateReady
			st.Rows = n
		case err == nil:
			st.State = StateNoRows
			ready = false
		case errors.Is(err, storage.ErrTableMissing):
			st.State = StateMissingTable
			st.Err = err
			ready = false
		default:
			return false, statuses, fmt.Errorf("transform %s: count %s: %w", e.Name, dep, err)
		}
		statuses = append(statuses, st)
	}
	return ready, statuses, nil
}
