package constraint

import (
	"fmt"
	"slices"
	"strings"
)

// ConflictError is returned when two different definitions claim the same
// group name.
type ConflictError struct {
	Group  string
	Reason string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("constraint group %s is defined twice with different contents: %s", e.Group, e.Reason)
}

// Catalog indexes groups by display name so that serialized keys can be
// resolved back to values.
type Catalog struct {
	groups map[string]Group
}

// NewCatalog returns a catalog holding the given groups.
func NewCatalog(groups ...Group) (*Catalog, error) {
	c := &Catalog{groups: make(map[string]Group)}
	if err := c.Add(groups...); err != nil {
		return nil, err
	}
	return c, nil
}

// Add registers groups. Adding a group that is equivalent to an existing
// one with the same name is a no-op and the existing group is kept.
func (c *Catalog) Add(groups ...Group) error {
	for _, g := range groups {
		if _, err := c.Adopt(g); err != nil {
			return err
		}
	}
	return nil
}

// Adopt registers g unless an equivalent group with the same name exists,
// and returns the group that is now canonical for that name.
func (c *Catalog) Adopt(g Group) (Group, error) {
	existing, ok := c.groups[g.Name()]
	if !ok {
		c.groups[g.Name()] = g
		return g, nil
	}
	if existing == g {
		return existing, nil
	}
	if reason := difference(existing, g); reason != "" {
		return nil, &ConflictError{Group: g.Name(), Reason: reason}
	}
	return existing, nil
}

// Group returns the group registered under name.
func (c *Catalog) Group(name string) (Group, bool) {
	g, ok := c.groups[name]
	return g, ok
}

// Groups returns every registered group sorted by name.
func (c *Catalog) Groups() []Group {
	out := make([]Group, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b Group) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Lookup resolves a "<Group>.<Member>" key.
func (c *Catalog) Lookup(key string) (Value, bool) {
	groupName, memberName, ok := strings.Cut(key, ".")
	if !ok {
		return nil, false
	}
	g, ok := c.groups[groupName]
	if !ok {
		return nil, false
	}
	for _, v := range g.Members() {
		if v.Name() == memberName {
			return v, true
		}
	}
	return nil, false
}

// difference describes why two same-named groups differ, or returns "".
func difference(a, b Group) string {
	if DocLine(a) != DocLine(b) {
		return fmt.Sprintf("doc %q vs %q", DocLine(a), DocLine(b))
	}
	am, bm := a.Members(), b.Members()
	if len(am) != len(bm) {
		return fmt.Sprintf("%d members vs %d", len(am), len(bm))
	}
	values := make(map[string]string, len(am))
	for _, v := range am {
		values[v.Name()] = v.Value()
	}
	for _, v := range bm {
		want, ok := values[v.Name()]
		if !ok {
			return fmt.Sprintf("member %s only in one definition", v.Name())
		}
		if want != v.Value() {
			return fmt.Sprintf("member %s is %q vs %q", v.Name(), want, v.Value())
		}
	}
	return ""
}
