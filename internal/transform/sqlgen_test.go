package transform

import (
	"strings"
	"testing"

	"dex/internal/entity"
)

func registryFixture(t *testing.T) *entity.Registry {
	t.Helper()
	reg, err := entity.NewRegistry([]entity.Entity{
		{Name: "tbl2", Tier: entity.TierRaw, Fields: []entity.Field{
			{Name: "class"}, {Name: "vendor_name"}, {Name: "cases"},
		}},
		{Name: "vendors", Tier: entity.TierReference, Key: "vendor_id", Fields: []entity.Field{
			{Name: "name", Source: &entity.SourceMapping{Entity: "tbl2", Column: "vendor_name"}},
		}},
		{Name: "sales", Tier: entity.TierMaster, Fields: []entity.Field{
			{Name: "class", Source: &entity.SourceMapping{Entity: "tbl2", Column: "class"}},
			{Name: "cases", Source: &entity.SourceMapping{Entity: "tbl2", Column: "cases"}},
			{Name: "vendor_id", Ref: "vendors", Source: &entity.SourceMapping{
				Entity: "vendors", Column: "name", JoinKey: "vendor_name",
			}},
			{Name: "loaded_at"},
		}},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestGenerate_MasterJoinPlan(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	e, _ := reg.Lookup("sales")

	plan, err := Generate(e, reg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(plan.Statements) != 2 {
		t.Fatalf("Statements = %d, want 2", len(plan.Statements))
	}
	if plan.Statements[0] != "DELETE FROM sales" {
		t.Fatalf("Statements[0] = %q", plan.Statements[0])
	}

	ins := plan.Statements[1]
	wantLines := []string{
		"INSERT INTO sales (class, cases, vendor_id)",
		"SELECT tbl2.class AS class, tbl2.cases AS cases, vendors.vendor_id AS vendor_id",
		"FROM tbl2",
		"JOIN vendors ON vendors.name = tbl2.vendor_name",
	}
	if got := strings.Split(strings.TrimRight(ins, "\n"), "\n"); len(got) != len(wantLines) {
		t.Fatalf("insert statement:\n%s\nwant %d lines", ins, len(wantLines))
	} else {
		for i, want := range wantLines {
			if got[i] != want {
				t.Fatalf("line %d = %q, want %q", i, got[i], want)
			}
		}
	}

	// Unmapped fields never appear in the column list.
	if strings.Contains(ins, "loaded_at") {
		t.Fatalf("unmapped field leaked into plan:\n%s", ins)
	}
}

func TestGenerate_ReferenceUsesDistinct(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	e, _ := reg.Lookup("vendors")

	plan, err := Generate(e, reg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(plan.Statements[1], "SELECT DISTINCT ") {
		t.Fatalf("reference plan lacks DISTINCT:\n%s", plan.Statements[1])
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)
	e, _ := reg.Lookup("sales")

	first, err := Generate(e, reg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Generate(e, reg)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if again.SQL() != first.SQL() {
			t.Fatalf("plan differs between runs:\n%s\nvs\n%s", first.SQL(), again.SQL())
		}
		if again.Fingerprint != first.Fingerprint {
			t.Fatalf("fingerprint differs: %x vs %x", first.Fingerprint, again.Fingerprint)
		}
	}
}

func TestGenerate_OneJoinPerUpstream(t *testing.T) {
	t.Parallel()

	// Several fields map the same upstream; the FROM clause must join it once.
	reg, err := entity.NewRegistry([]entity.Entity{
		{Name: "tbl2", Tier: entity.TierRaw, Fields: []entity.Field{{Name: "class"}, {Name: "region"}}},
		{Name: "regions", Tier: entity.TierReference, Fields: []entity.Field{
			{Name: "region", Source: &entity.SourceMapping{Entity: "tbl2", Column: "region"}},
			{Name: "label"},
		}},
		{Name: "report", Tier: entity.TierMaster, Fields: []entity.Field{
			{Name: "class", Source: &entity.SourceMapping{Entity: "tbl2", Column: "class"}},
			{Name: "region", Source: &entity.SourceMapping{Entity: "regions", Column: "region", JoinKey: "region"}},
			{Name: "region_label", Source: &entity.SourceMapping{Entity: "regions", Column: "label", JoinKey: "region"}},
		}},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	e, _ := reg.Lookup("report")

	plan, err := Generate(e, reg)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n := strings.Count(plan.Statements[1], "JOIN regions"); n != 1 {
		t.Fatalf("JOIN regions appears %d times:\n%s", n, plan.Statements[1])
	}
	if !strings.Contains(plan.Statements[1], "JOIN regions ON regions.region = tbl2.region") {
		t.Fatalf("unexpected join condition:\n%s", plan.Statements[1])
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()

	reg := registryFixture(t)

	raw, _ := reg.Lookup("tbl2")
	if _, err := Generate(raw, reg); err == nil {
		t.Fatalf("expected error for raw tier")
	}

	bare := entity.Entity{Name: "empty_master", Tier: entity.TierMaster, Fields: []entity.Field{{Name: "x"}}}
	if _, err := Generate(&bare, reg); err == nil {
		t.Fatalf("expected error for entity without source mappings")
	}

	dangling := entity.Entity{Name: "bad", Tier: entity.TierMaster, Fields: []entity.Field{
		{Name: "x", Ref: "nope", Source: &entity.SourceMapping{Entity: "nope", Column: "c"}},
	}}
	if _, err := Generate(&dangling, reg); err == nil {
		t.Fatalf("expected error for unknown ref entity")
	}
}
