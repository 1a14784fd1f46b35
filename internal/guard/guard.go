// Package guard detects regressions in how many tests honor each
// constraint from one run to the next.
package guard

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/internal/index"
)

// Snapshot maps "<Group>.<Member>" to the number of tests honoring it.
type Snapshot map[string]int

// RegressionError lists every constraint whose honor count dropped.
type RegressionError struct {
	// Messages is sorted.
	Messages []string
}

// Error implements the error interface.
func (e *RegressionError) Error() string {
	return "honored constraint regressions:\n  " + strings.Join(e.Messages, "\n  ")
}

// Summarize counts the registered tests for every (group, value) pair.
func Summarize(idx *index.Index) Snapshot {
	counts := make(Snapshot, idx.Len())
	for _, g := range idx.Groups() {
		for _, v := range idx.Values(g) {
			counts[constraint.Key(v)] = len(idx.Tests(v))
		}
	}
	return counts
}

// Compare returns a *RegressionError if any key of previous has a strictly
// smaller count in current. Keys missing from current count as zero; keys
// new in current are ignored.
func Compare(previous, current Snapshot) error {
	var messages []string
	for key, before := range previous {
		after := current[key]
		if after < before {
			messages = append(messages, fmt.Sprintf("Constraint '%s' honorers count dropped from %d to %d", key, before, after))
		}
	}
	if len(messages) == 0 {
		return nil
	}
	slices.Sort(messages)
	return &RegressionError{Messages: messages}
}

// Change is the movement of one key between two snapshots.
type Change struct {
	Key      string `json:"key"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
}

// Delta returns Current minus Previous.
func (c Change) Delta() int { return c.Current - c.Previous }

// Diff lists every key present in either snapshot, sorted by key.
func Diff(previous, current Snapshot) []Change {
	keys := make(map[string]struct{}, len(previous)+len(current))
	for k := range previous {
		keys[k] = struct{}{}
	}
	for k := range current {
		keys[k] = struct{}{}
	}
	out := make([]Change, 0, len(keys))
	for k := range keys {
		out = append(out, Change{Key: k, Previous: previous[k], Current: current[k]})
	}
	slices.SortFunc(out, func(a, b Change) int { return strings.Compare(a.Key, b.Key) })
	return out
}
