// Package render turns the association index and outcome ledger into a
// report.
//
// Output order never depends on registration order: groups sort by name,
// values by member name, tests by display name (stable).
package render

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"slices"
	"strings"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/internal/index"
	"github.com/roach88/honors/internal/outcome"
)

// MissingOutcome is the warning attached to a test that was registered but
// never reported a call-phase outcome.
const MissingOutcome = "An honoring node can't be included in the report because it failed"

// WarnFunc attaches a non-fatal annotation to a test.
type WarnFunc func(test *index.Test, message string)

// Markdown yields the report one line at a time. Tests without an outcome
// are reported to warn and left out of the evidence list. warn may be nil.
func Markdown(idx *index.Index, ledger *outcome.Ledger, warn WarnFunc) iter.Seq[string] {
	return func(yield func(string) bool) {
		emit := func(lines ...string) bool {
			for _, l := range lines {
				if !yield(l) {
					return false
				}
			}
			return true
		}

		for i, g := range sortedGroups(idx) {
			if i > 0 && !emit("", "---") {
				return
			}
			if !emit("", fmt.Sprintf("# %s - %s", g.Name(), constraint.DocLine(g))) {
				return
			}

			for _, v := range sortedValues(idx, g) {
				if !emit("", fmt.Sprintf("## %s: %s", v.Name(), v.Value()), "", "Supporting evidence:", "") {
					return
				}

				for _, t := range sortedTests(idx, v) {
					result, ok := ledger.Lookup(t.ID)
					if !ok {
						if warn != nil {
							warn(t, MissingOutcome)
						}
						continue
					}
					if result != outcome.Passed {
						result = "**" + result + "**"
					}
					if !emit(
						"- Name: "+t.Name,
						`  Explanation: "`+t.Doc+`"`,
						"  Path: "+t.ID,
						"  Result: "+result,
					) {
						return
					}
				}
			}
		}
	}
}

// WriteFile writes lines to path as UTF-8, each followed by a newline,
// replacing any existing file.
func WriteFile(path string, lines iter.Seq[string]) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("write report %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return f.Close()
}

func sortedGroups(idx *index.Index) []constraint.Group {
	groups := idx.Groups()
	slices.SortFunc(groups, func(a, b constraint.Group) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return groups
}

func sortedValues(idx *index.Index, g constraint.Group) []constraint.Value {
	values := idx.Values(g)
	slices.SortFunc(values, constraint.Compare)
	return values
}

func sortedTests(idx *index.Index, v constraint.Value) []*index.Test {
	tests := slices.Clone(idx.Tests(v))
	slices.SortStableFunc(tests, func(a, b *index.Test) int {
		return strings.Compare(a.Name, b.Name)
	})
	return tests
}
