package tablematch

import (
	"errors"
	"sort"

	"dex/internal/document"
	"dex/internal/template"
)

// DefaultThreshold is the header-similarity acceptance threshold used when
// configuration does not override it.
const DefaultThreshold = 0.85

// ErrUnidentified reports that no candidate pattern cleared the acceptance
// threshold (or all qualifying candidates had already claimed their slot).
// The caller logs the table and skips it; there is no partial or guessed
// assignment.
var ErrUnidentified = errors.New("table matches no pattern")

// Assigned is the per-document set of target entity names already claimed by
// earlier tables. It must be created fresh for each document and mutated only
// by the per-document orchestrator, never shared across concurrent runs.
type Assigned map[string]bool

// NewAssigned returns an empty per-document assignment set.
func NewAssigned() Assigned { return make(Assigned) }

// Mark records that the pattern's target entity has claimed its slot.
func (a Assigned) Mark(p *template.TablePattern) { a[p.Entity] = true }

// Identifier scores tables against candidate patterns.
type Identifier struct {
	// Threshold is the acceptance threshold; zero means DefaultThreshold.
	Threshold float64
}

// scored pairs a candidate with its similarity score and declared order.
type scored struct {
	pattern *template.TablePattern
	score   float64
	order   int
}

// Identify returns the pattern the table belongs to, honoring sequential
// disambiguation, or ErrUnidentified.
//
// Candidates scoring at or above the threshold are ordered by descending
// score, ties broken by declared order in the template. A candidate carrying
// a sequence group whose target entity is already in assigned has claimed
// its slot and is skipped. The first surviving candidate wins.
//
// Identify never mutates assigned: the caller marks the returned pattern's
// entity immediately after a successful match, which keeps this function
// reusable and testable in isolation. Tables of one document must be
// identified sequentially, in document order, for repeated runs to assign
// identical tables to identical entities.
func (id Identifier) Identify(table document.Table, candidates []template.TablePattern, assigned Assigned) (*template.TablePattern, error) {
	threshold := id.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	key := HeaderKey(table.Header)
	kept := make([]scored, 0, len(candidates))
	for i := range candidates {
		p := &candidates[i]
		score := Ratio(key, HeaderKey(p.Header))
		if score >= threshold {
			kept = append(kept, scored{pattern: p, score: score, order: i})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].order < kept[j].order
	})

	for _, c := range kept {
		if c.pattern.SequenceGroup != "" && assigned[c.pattern.Entity] {
			continue
		}
		return c.pattern, nil
	}
	return nil, ErrUnidentified
}
