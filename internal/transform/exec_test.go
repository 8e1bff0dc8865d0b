package transform

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// fakeStore implements storage.Store in memory, recording executed scripts.
type fakeStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	errs    map[string]error
	scripts [][]string
	execErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{counts: map[string]int64{}, errs: map[string]error{}}
}

func (f *fakeStore) Exec(ctx context.Context, query string) (int64, error) {
	return 0, nil
}

func (f *fakeStore) ExecAll(ctx context.Context, queries []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return 0, f.execErr
	}
	cp := make([]string, len(queries))
	copy(cp, queries)
	f.scripts = append(f.scripts, cp)
	return int64(len(queries)), nil
}

func (f *fakeStore) Count(ctx context.Context, table string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[table]; ok {
		return 0, err
	}
	return f.counts[table], nil
}

func (f *fakeStore) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) scriptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scripts)
}

func TestRefresh_LoadsWhenReady(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	store := newFakeStore()
	store.counts["tbl2"] = 12
	store.counts["vendors"] = 3
	store.counts["sales"] = 12

	x := NewExecutor(store, reg)
	n, err := x.Refresh(context.Background(), "sales")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 12 {
		t.Fatalf("rows = %d, want 12", n)
	}
	if store.scriptCount() != 1 {
		t.Fatalf("scripts executed = %d, want 1", store.scriptCount())
	}
	script := store.scripts[0]
	if script[0] != "DELETE FROM sales" || !strings.HasPrefix(script[1], "INSERT INTO sales") {
		t.Fatalf("script = %v", script)
	}
}

func TestRefresh_NotReadyWritesNothing(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	store := newFakeStore()
	store.counts["tbl2"] = 12
	// vendors exists but is empty.

	x := NewExecutor(store, reg)
	_, err := x.Refresh(context.Background(), "sales")

	var nr *NotReadyError
	if !errors.As(err, &nr) {
		t.Fatalf("err = %v, want *NotReadyError", err)
	}
	if nr.Entity != "sales" {
		t.Fatalf("Entity = %q", nr.Entity)
	}
	if store.scriptCount() != 0 {
		t.Fatalf("scripts executed = %d, want 0", store.scriptCount())
	}
}

func TestRefresh_RejectsRawEntity(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	x := NewExecutor(newFakeStore(), reg)
	if _, err := x.Refresh(context.Background(), "tbl2"); err == nil {
		t.Fatalf("expected error for raw entity")
	}
	if _, err := x.Refresh(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for unknown entity")
	}
}

func TestRefresh_ExecFailureWrapsQuery(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	store := newFakeStore()
	store.counts["tbl2"] = 1
	store.counts["vendors"] = 1
	store.execErr = errors.New("deadlock detected")

	x := NewExecutor(store, reg)
	_, err := x.Refresh(context.Background(), "sales")

	var xe *ExecError
	if !errors.As(err, &xe) {
		t.Fatalf("err = %v, want *ExecError", err)
	}
	if xe.Entity != "sales" || !strings.Contains(xe.Query, "INSERT INTO sales") {
		t.Fatalf("ExecError = %+v", xe)
	}
	if !strings.Contains(xe.Error(), "deadlock detected") {
		t.Fatalf("Error() = %q", xe.Error())
	}
}

func TestRefreshAll_ReferenceBeforeMasterSkipsNotReady(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	store := newFakeStore()
	// Only the raw upstream has data: vendors can load, sales cannot until
	// vendors has rows, and the fake's counts never change.
	store.counts["tbl2"] = 12

	x := NewExecutor(store, reg)
	loaded, err := x.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if !reflect.DeepEqual(loaded, map[string]int64{"vendors": 0}) {
		t.Fatalf("loaded = %v", loaded)
	}
	if store.scriptCount() != 1 {
		t.Fatalf("scripts executed = %d, want 1 (vendors only)", store.scriptCount())
	}
	if store.scripts[0][0] != "DELETE FROM vendors" {
		t.Fatalf("first script = %v", store.scripts[0])
	}
}

func TestRefreshAll_AllReady(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	store := newFakeStore()
	store.counts["tbl2"] = 12
	store.counts["vendors"] = 3
	store.counts["sales"] = 12

	x := NewExecutor(store, reg)
	loaded, err := x.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	want := map[string]int64{"vendors": 3, "sales": 12}
	if !reflect.DeepEqual(loaded, want) {
		t.Fatalf("loaded = %v, want %v", loaded, want)
	}
	if store.scriptCount() != 2 {
		t.Fatalf("scripts executed = %d, want 2", store.scriptCount())
	}
	// Reference tier loads first.
	if store.scripts[0][0] != "DELETE FROM vendors" || store.scripts[1][0] != "DELETE FROM sales" {
		t.Fatalf("script order = %v then %v", store.scripts[0][0], store.scripts[1][0])
	}
}
