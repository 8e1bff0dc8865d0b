package transform

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"dex/internal/entity"
	"dex/internal/storage"
)

func src(ent, col string) *entity.SourceMapping {
	return &entity.SourceMapping{Entity: ent, Column: col}
}

func TestDependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		e    entity.Entity
		want []string
	}{
		{
			name: "raw entity has none",
			e: entity.Entity{Name: "tbl2", Tier: entity.TierRaw, Fields: []entity.Field{
				{Name: "class"},
			}},
			want: nil,
		},
		{
			name: "distinct in first-reference order",
			e: entity.Entity{Name: "sales", Tier: entity.TierMaster, Fields: []entity.Field{
				{Name: "cases", Source: src("tbl2", "cases")},
				{Name: "vendor_id", Source: src("vendors", "name")},
				{Name: "class", Source: src("tbl2", "class")},
			}},
			want: []string{"tbl2", "vendors"},
		},
		{
			name: "self-reference excluded",
			e: entity.Entity{Name: "sales", Tier: entity.TierMaster, Fields: []entity.Field{
				{Name: "cases", Source: src("tbl2", "cases")},
				{Name: "prior", Source: src("sales", "cases")},
			}},
			want: []string{"tbl2"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Dependencies(&tt.e)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Dependencies = %v, want %v", got, tt.want)
			}
		})
	}
}

// fakeCounter maps table names to a fixed count or error.
type fakeCounter struct {
	counts map[string]int64
	errs   map[string]error
}

func (f fakeCounter) Count(ctx context.Context, table string) (int64, error) {
	if err, ok := f.errs[table]; ok {
		return 0, err
	}
	return f.counts[table], nil
}

func derivedFixture() entity.Entity {
	return entity.Entity{Name: "sales", Tier: entity.TierMaster, Fields: []entity.Field{
		{Name: "cases", Source: src("tbl2", "cases")},
		{Name: "vendor_id", Source: src("vendors", "name")},
	}}
}

func TestIsReady(t *testing.T) {
	t.Parallel()

	e := derivedFixture()

	t.Run("all dependencies have rows", func(t *testing.T) {
		t.Parallel()
		c := Checker{Store: fakeCounter{counts: map[string]int64{"tbl2": 10, "vendors": 3}}}
		ready, statuses, err := c.IsReady(context.Background(), &e)
		if err != nil {
			t.Fatalf("IsReady: %v", err)
		}
		if !ready {
			t.Fatalf("ready = false, statuses %+v", statuses)
		}
		if len(statuses) != 2 || statuses[0].State != StateReady || statuses[0].Rows != 10 {
			t.Fatalf("statuses = %+v", statuses)
		}
	})

	t.Run("empty dependency blocks", func(t *testing.T) {
		t.Parallel()
		c := Checker{Store: fakeCounter{counts: map[string]int64{"tbl2": 10, "vendors": 0}}}
		ready, statuses, err := c.IsReady(context.Background(), &e)
		if err != nil {
			t.Fatalf("IsReady: %v", err)
		}
		if ready {
			t.Fatalf("ready = true with an empty upstream")
		}
		if statuses[1].Entity != "vendors" || statuses[1].State != StateNoRows {
			t.Fatalf("statuses = %+v", statuses)
		}
	})

	t.Run("missing table blocks", func(t *testing.T) {
		t.Parallel()
		c := Checker{Store: fakeCounter{
			counts: map[string]int64{"tbl2": 10},
			errs:   map[string]error{"vendors": fmt.Errorf("relation vendors: %w", storage.ErrTableMissing)},
		}}
		ready, statuses, err := c.IsReady(context.Background(), &e)
		if err != nil {
			t.Fatalf("IsReady: %v", err)
		}
		if ready {
			t.Fatalf("ready = true with a missing table")
		}
		if statuses[1].State != StateMissingTable {
			t.Fatalf("statuses = %+v", statuses)
		}
	})

	t.Run("hard backend error aborts", func(t *testing.T) {
		t.Parallel()
		c := Checker{Store: fakeCounter{errs: map[string]error{"tbl2": errors.New("connection reset")}}}
		_, _, err := c.IsReady(context.Background(), &e)
		if err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestNotReadyErrorMessage(t *testing.T) {
	t.Parallel()

	err := &NotReadyError{Entity: "sales", Statuses: []DependencyStatus{
		{Entity: "tbl2", State: StateReady, Rows: 5},
		{Entity: "vendors", State: StateNoRows},
		{Entity: "regions", State: StateMissingTable},
	}}
	msg := err.Error()
	for _, want := range []string{"sales", "vendors=no_rows", "regions=missing_table"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
	if strings.Contains(msg, "tbl2=") {
		t.Fatalf("message %q names a ready dependency", msg)
	}
}
