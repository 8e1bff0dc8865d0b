package transform

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"dex/internal/entity"
)

// Plan is the generated load script for one derived entity. Statements is
// executed transactionally in order; the first statement clears the target
// table so a re-run replaces rather than appends.
type Plan struct {
	Entity     string
	Statements []string

	// Fingerprint is a stable hash of the statement text. Identical inputs
	// always produce identical plans, so the fingerprint doubles as a cheap
	// idempotence check in logs.
	Fingerprint uint64
}

// SQL returns the full script as one string, statements separated by
// newlines, for logging and diagnostics.
func (p Plan) SQL() string {
	return strings.Join(p.Statements, "\n")
}

// Generate builds the load plan for a derived entity.
//
// Statement shape: one DELETE followed by one INSERT ... SELECT. The select
// list holds exactly the mapped fields in declared order; unmapped fields
// are omitted and fall back to column defaults. The first upstream entity
// referenced by a field mapping anchors the FROM clause; every further
// upstream is joined exactly once, in first-reference order.
//
// Join conditions come from the first field mapping that references an
// upstream:
//   - plain fields join on a shared column name, the mapping's join_key or
//     the upstream's primary key when no join_key is declared;
//   - foreign-key fields (ref set, source pointing at the referenced entity)
//     join the referenced entity's source column against the anchor's
//     join_key column and select the referenced entity's primary key, never
//     a re-derived business key.
//
// Reference-tier entities select DISTINCT rows; they are dimensions and a
// repeated business row must not produce duplicate dimension members.
func Generate(e *entity.Entity, reg *entity.Registry) (Plan, error) {
	if !e.Tier.Derived() {
		return Plan{}, fmt.Errorf("transform %s: tier %s is not derived", e.Name, e.Tier)
	}
	deps := Dependencies(e)
	if len(deps) == 0 {
		return Plan{}, fmt.Errorf("transform %s: no field declares a source mapping", e.Name)
	}
	anchor := deps[0]

	var cols, selects []string
	for _, f := range e.Fields {
		if f.Source == nil {
			continue
		}
		cols = append(cols, f.Name)
		if f.Ref != "" {
			ref, ok := reg.Lookup(f.Ref)
			if !ok {
				return Plan{}, fmt.Errorf("transform %s: field %s references unknown entity %s", e.Name, f.Name, f.Ref)
			}
			selects = append(selects, fmt.Sprintf("%s.%s AS %s", f.Source.Entity, ref.PrimaryKey(), f.Name))
		} else {
			selects = append(selects, fmt.Sprintf("%s.%s AS %s", f.Source.Entity, f.Source.Column, f.Name))
		}
	}

	var joins []string
	for _, dep := range deps[1:] {
		cond, err := joinCondition(e, dep, anchor, reg)
		if err != nil {
			return Plan{}, err
		}
		joins = append(joins, fmt.Sprintf("JOIN %s ON %s", dep, cond))
	}

	keyword := "SELECT"
	if e.Tier == entity.TierReference {
		keyword = "SELECT DISTINCT"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s)\n", e.Name, strings.Join(cols, ", "))
	fmt.Fprintf(&b, "%s %s\n", keyword, strings.Join(selects, ", "))
	fmt.Fprintf(&b, "FROM %s", anchor)
	for _, j := range joins {
		b.WriteString("\n")
		b.WriteString(j)
	}

	stmts := []string{
		fmt.Sprintf("DELETE FROM %s", e.Name),
		b.String(),
	}
	return Plan{
		Entity:      e.Name,
		Statements:  stmts,
		Fingerprint: xxh3.HashString(strings.Join(stmts, "\n")),
	}, nil
}

// joinCondition derives the ON clause for one joined upstream from the first
// field (declared order) whose source mapping references it.
func joinCondition(e *entity.Entity, dep, anchor string, reg *entity.Registry) (string, error) {
	for _, f := range e.Fields {
		if f.Source == nil || f.Source.Entity != dep {
			continue
		}
		if f.Ref != "" {
			key := f.Source.JoinKey
			if key == "" {
				key = f.Source.Column
			}
			return fmt.Sprintf("%s.%s = %s.%s", dep, f.Source.Column, anchor, key), nil
		}
		key := f.Source.JoinKey
		if key == "" {
			upstream, ok := reg.Lookup(dep)
			if !ok {
				return "", fmt.Errorf("transform %s: join target %s not in registry", e.Name, dep)
			}
			key = upstream.PrimaryKey()
		}
		return fmt.Sprintf("%s.%s = %s.%s", dep, key, anchor, key), nil
	}
	return "", fmt.Errorf("transform %s: no field maps entity %s", e.Name, dep)
}
