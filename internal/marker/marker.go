// Package marker defines the line a tagged test writes into its own output
// so that a separate process consuming `go test -json` can discover which
// constraints the test honors.
//
// A marker is a single line:
//
//	honors:v1 {"doc":"...","groups":[...],"honors":["Group.member",...]}
//
// The groups section carries the full definition of every group referenced
// by the test, so groups declared in test code need no separate catalog.
package marker

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/honors/constraint"
)

// Prefix introduces a marker inside a line of test output.
const Prefix = "honors:v1 "

// Payload is the JSON body of a marker.
type Payload struct {
	// Doc is the first line of the test function's doc comment.
	Doc string `json:"doc,omitempty"`

	// Groups defines every group referenced in Honors.
	Groups []GroupDef `json:"groups,omitempty"`

	// Honors lists "<Group>.<Member>" keys. Entries are kept raw so that
	// anything other than a resolvable key surfaces as a type violation
	// when registered.
	Honors []json.RawMessage `json:"honors"`
}

// GroupDef is the serialized definition of a constraint group.
type GroupDef struct {
	Name    string      `json:"name"`
	Doc     string      `json:"doc,omitempty"`
	Members []MemberDef `json:"members"`
}

// MemberDef is the serialized definition of a group member.
type MemberDef struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// New builds the payload for a test honoring values.
func New(doc string, values []constraint.Value) Payload {
	p := Payload{Doc: norm.NFC.String(strings.TrimSpace(doc))}
	seen := make(map[string]bool)
	for _, v := range values {
		g := v.Group()
		if !seen[g.Name()] {
			seen[g.Name()] = true
			p.Groups = append(p.Groups, Define(g))
		}
		key, _ := json.Marshal(constraint.Key(v))
		p.Honors = append(p.Honors, key)
	}
	return p
}

// Define serializes a group definition.
func Define(g constraint.Group) GroupDef {
	def := GroupDef{Name: g.Name(), Doc: g.Doc()}
	for _, v := range g.Members() {
		def.Members = append(def.Members, MemberDef{Name: v.Name(), Value: v.Value()})
	}
	return def
}

// Build turns a definition back into a group.
func (d GroupDef) Build() (*constraint.Enum, error) {
	members := make([]constraint.Member, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, constraint.Member{Name: m.Name, Value: m.Value})
	}
	return constraint.DefineEnum(d.Name, d.Doc, members...)
}

// Encode renders the marker line, without a trailing newline.
func Encode(p Payload) (string, error) {
	if p.Honors == nil {
		p.Honors = []json.RawMessage{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode marker: %w", err)
	}
	return Prefix + string(data), nil
}

// Find extracts a marker from a line of test output. The line may carry the
// file:line prefix that testing.T.Log adds. ok is false if the line holds
// no marker; err is set if it holds a marker that cannot be decoded.
func Find(line string) (p Payload, ok bool, err error) {
	i := strings.Index(line, Prefix)
	if i < 0 {
		return Payload{}, false, nil
	}
	body := strings.TrimSpace(line[i+len(Prefix):])
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Payload{}, true, fmt.Errorf("decode marker: %w", err)
	}
	return p, true, nil
}

// Decode converts one raw Honors entry. A JSON string is returned as a
// string; any other JSON value is returned as whatever encoding/json
// decodes it to.
func Decode(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	return v
}
