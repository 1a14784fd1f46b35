// Package constraint defines the taxonomy of constraints a test can honor.
//
// A constraint belongs to exactly one Group. Groups are closed, documented
// sets: they are defined once at load time and never change afterwards.
// Identity is by group and member, never by display string, so two groups
// may both declare a member called "spam" without the two being equal.
//
// Downstream users can define their own groups either with NewEnum or by
// implementing Group and Value directly. Implementations are used as map
// keys and must therefore be comparable.
package constraint

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Group is a named, documented set of constraints.
type Group interface {
	// Name is the display name used for sorting and report headings.
	Name() string
	// Doc is the group's documentation. Only its first line is rendered.
	Doc() string
	// Members lists every value of the group in declaration order.
	Members() []Value
}

// Value is one member of a Group.
type Value interface {
	Group() Group
	// Name is the member identifier, unique within its group.
	Name() string
	// Value is the human-readable description of the member.
	Value() string
}

// Member declares one member of an Enum.
type Member struct {
	Name  string
	Value string
}

// Enum is the standard Group implementation: a fixed list of members
// declared up front.
type Enum struct {
	name    string
	doc     string
	members []Value
	byName  map[string]Value
}

type member struct {
	group *Enum
	name  string
	value string
}

func (m member) Group() Group   { return m.group }
func (m member) Name() string   { return m.name }
func (m member) Value() string  { return m.value }
func (m member) String() string { return Key(m) }

// NewEnum defines a group. It panics if DefineEnum rejects the definition,
// which is a programming error in a group declared in code.
func NewEnum(name, doc string, members ...Member) *Enum {
	e, err := DefineEnum(name, doc, members...)
	if err != nil {
		panic(err.Error())
	}
	return e
}

// DefineEnum defines a group from input that may be malformed, such as a
// catalog file or a test marker. Group and member names are trimmed and
// NFC-normalised before they are checked. The group name must be non-empty
// and free of '.', which separates group and member in keys; member names
// must be non-empty and unique.
func DefineEnum(name, doc string, members ...Member) (*Enum, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("constraint: group name must not be empty")
	}
	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("constraint: group %s: name must not contain '.'", name)
	}
	e := &Enum{
		name:   name,
		doc:    norm.NFC.String(doc),
		byName: make(map[string]Value, len(members)),
	}
	for _, m := range members {
		id := norm.NFC.String(strings.TrimSpace(m.Name))
		if id == "" {
			return nil, fmt.Errorf("constraint: group %s: member without a name", name)
		}
		if _, dup := e.byName[id]; dup {
			return nil, fmt.Errorf("constraint: group %s: duplicate member %s", name, id)
		}
		v := member{group: e, name: id, value: norm.NFC.String(m.Value)}
		e.members = append(e.members, v)
		e.byName[id] = v
	}
	return e, nil
}

// Name implements Group.
func (e *Enum) Name() string { return e.name }

// Doc implements Group.
func (e *Enum) Doc() string { return e.doc }

// String returns the group name.
func (e *Enum) String() string { return e.name }

// Members implements Group.
func (e *Enum) Members() []Value {
	out := make([]Value, len(e.members))
	copy(out, e.members)
	return out
}

// Get returns the member with the given name.
func (e *Enum) Get(name string) (Value, bool) {
	v, ok := e.byName[name]
	return v, ok
}

// Must returns the member with the given name and panics if it is missing.
// Intended for package-level variable declarations.
func (e *Enum) Must(name string) Value {
	v, ok := e.byName[name]
	if !ok {
		panic(fmt.Sprintf("constraint: group %s has no member %s", e.name, name))
	}
	return v
}

// Key returns the "<Group>.<Member>" form used in count snapshots.
func Key(v Value) string {
	return v.Group().Name() + "." + v.Name()
}

// DocLine returns the first line of the group's documentation.
func DocLine(g Group) string {
	doc := strings.TrimSpace(g.Doc())
	if i := strings.IndexByte(doc, '\n'); i >= 0 {
		doc = doc[:i]
	}
	return strings.TrimSpace(doc)
}

// Compare orders values by group name, then member name.
func Compare(a, b Value) int {
	if c := strings.Compare(a.Group().Name(), b.Group().Name()); c != 0 {
		return c
	}
	return strings.Compare(a.Name(), b.Name())
}
