// Package index maps constraint groups and values to the tests that
// declared honoring them.
package index

import (
	"fmt"

	"github.com/roach88/honors/constraint"
)

// Test is a discovered test case. The host adapter owns it; the index only
// keeps references.
type Test struct {
	// ID is the unique, path-like identifier, e.g. "example.com/pkg.TestX/sub".
	ID string `json:"id"`
	// Name is the display name used for sorting.
	Name string `json:"name"`
	// Doc is the test's one-line documentation.
	Doc string `json:"doc"`
}

// TypeViolationError reports a tag argument that is not a constraint value.
type TypeViolationError struct {
	Test string
	Type string
}

// Error implements the error interface.
func (e *TypeViolationError) Error() string {
	return fmt.Sprintf("honored constraints on %s must be constraint values, not %s", e.Test, e.Type)
}

// Index is the association index: group -> value -> tests.
// Lists keep insertion order; renderers sort on output.
type Index struct {
	groups map[constraint.Group]map[constraint.Value][]*Test
}

// New returns an empty index.
func New() *Index {
	return &Index{groups: make(map[constraint.Group]map[constraint.Value][]*Test)}
}

// Register appends test under every given constraint. All arguments are
// checked before the index is touched, so a violation leaves it unchanged.
func (x *Index) Register(test *Test, constraints ...any) error {
	values := make([]constraint.Value, 0, len(constraints))
	for _, c := range constraints {
		v, ok := c.(constraint.Value)
		if !ok {
			return &TypeViolationError{Test: test.ID, Type: fmt.Sprintf("%T", c)}
		}
		values = append(values, v)
	}

	for _, v := range values {
		g := v.Group()
		byValue, ok := x.groups[g]
		if !ok {
			byValue = make(map[constraint.Value][]*Test)
			x.groups[g] = byValue
		}
		byValue[v] = append(byValue[v], test)
	}
	return nil
}

// Groups returns the groups that have at least one registration, unordered.
func (x *Index) Groups() []constraint.Group {
	out := make([]constraint.Group, 0, len(x.groups))
	for g := range x.groups {
		out = append(out, g)
	}
	return out
}

// Values returns the registered values of g, unordered.
func (x *Index) Values(g constraint.Group) []constraint.Value {
	byValue := x.groups[g]
	out := make([]constraint.Value, 0, len(byValue))
	for v := range byValue {
		out = append(out, v)
	}
	return out
}

// Tests returns the tests registered under v in registration order.
func (x *Index) Tests(v constraint.Value) []*Test {
	return x.groups[v.Group()][v]
}

// Len returns the number of distinct (group, value) pairs.
func (x *Index) Len() int {
	n := 0
	for _, byValue := range x.groups {
		n += len(byValue)
	}
	return n
}

// Reset drops every registration.
func (x *Index) Reset() {
	clear(x.groups)
}
