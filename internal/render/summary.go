package render

import (
	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/internal/index"
	"github.com/roach88/honors/internal/outcome"
)

// GroupSummary is the structured form of one report section.
type GroupSummary struct {
	Name        string              `json:"name"`
	Doc         string              `json:"doc"`
	Constraints []ConstraintSummary `json:"constraints"`
}

// ConstraintSummary lists the evidence for one constraint.
type ConstraintSummary struct {
	Key      string     `json:"key"`
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Evidence []Evidence `json:"evidence"`
}

// Evidence is one honoring test and its outcome.
type Evidence struct {
	index.Test
	Result string `json:"result"`
	Passed bool   `json:"passed"`
}

// Summary returns the report in structured form, in the same order as
// Markdown. Tests without an outcome are omitted.
func Summary(idx *index.Index, ledger *outcome.Ledger) []GroupSummary {
	var out []GroupSummary
	for _, g := range sortedGroups(idx) {
		gs := GroupSummary{Name: g.Name(), Doc: constraint.DocLine(g)}
		for _, v := range sortedValues(idx, g) {
			cs := ConstraintSummary{
				Key:      constraint.Key(v),
				Name:     v.Name(),
				Value:    v.Value(),
				Evidence: []Evidence{},
			}
			for _, t := range sortedTests(idx, v) {
				result, ok := ledger.Lookup(t.ID)
				if !ok {
					continue
				}
				cs.Evidence = append(cs.Evidence, Evidence{Test: *t, Result: result, Passed: result == outcome.Passed})
			}
			gs.Constraints = append(gs.Constraints, cs)
		}
		out = append(out, gs)
	}
	return out
}
